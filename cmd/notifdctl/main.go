// Package main is the entrypoint for notifdctl, a thin diagnostic CLI for
// a running notifd process.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
)

const (
	busInterface = "org.freedesktop.Notifications"
	busPath      = "/org/freedesktop/Notifications"
	busName      = "org.freedesktop.Notifications"
	socketIface  = "com.system76.NotificationsSocket"
	socketPath   = "/com/system76/NotificationsSocket"
	appletIface  = "com.system76.NotificationsApplet"
	appletPath   = "/com/system76/NotificationsApplet"
	callTimeout  = 2 * time.Second
)

var rootCmd = &cobra.Command{
	Use:   "notifdctl",
	Short: "Diagnostic CLI for a running notifd instance",
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Print the capabilities and server info advertised by notifd",
	RunE:  runCapabilities,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print hidden history via the applet socket",
	RunE:  runHistory,
}

func main() {
	rootCmd.AddCommand(capabilitiesCmd, historyCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	obj := conn.Object(busName, dbus.ObjectPath(busPath))

	var caps []string
	if err := obj.CallWithContext(ctx, busInterface+".GetCapabilities", 0).Store(&caps); err != nil {
		return fmt.Errorf("GetCapabilities: %w", err)
	}

	var name, vendor, version, specVersion string
	if err := obj.CallWithContext(ctx, busInterface+".GetServerInformation", 0).
		Store(&name, &vendor, &version, &specVersion); err != nil {
		return fmt.Errorf("GetServerInformation: %w", err)
	}

	fmt.Printf("server:  %s (%s) %s, spec %s\n", name, vendor, version, specVersion)
	fmt.Printf("capabilities: %v\n", caps)
	return nil
}

// runHistory fetches the fd backing a fresh applet peer connection via
// GetFd, then calls GetHistory on the resulting private connection the
// same way the real applet would.
func runHistory(cmd *cobra.Command, args []string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	var fd dbus.UnixFD
	obj := conn.Object(busName, dbus.ObjectPath(socketPath))
	if err := obj.CallWithContext(ctx, socketIface+".GetFd", 0).Store(&fd); err != nil {
		return fmt.Errorf("GetFd: %w", err)
	}

	f := os.NewFile(uintptr(fd), "notifd-applet")
	defer f.Close()

	netConn, err := net.FileConn(f)
	if err != nil {
		return fmt.Errorf("wrap applet fd: %w", err)
	}

	peer, err := dbus.NewConn(netConn)
	if err != nil {
		return fmt.Errorf("open applet peer connection: %w", err)
	}
	defer peer.Close()
	if err := peer.Auth(nil); err != nil {
		return fmt.Errorf("authenticate applet peer connection: %w", err)
	}

	type entry struct {
		ID         uint32
		AppName    string
		Summary    string
		Body       string
		AppIcon    string
		ReceivedAt int64
	}
	var entries []entry

	appletObj := peer.Object("", dbus.ObjectPath(appletPath))
	call := appletObj.CallWithContext(ctx, appletIface+".GetHistory", 0)
	if call.Err != nil {
		return fmt.Errorf("GetHistory: %w", call.Err)
	}
	if err := call.Store(&entries); err != nil {
		return fmt.Errorf("decode GetHistory reply: %w", err)
	}

	for _, e := range entries {
		fmt.Printf("%d\t%s\t%s: %s\n", e.ID, time.Unix(e.ReceivedAt, 0).Format(time.RFC3339), e.AppName, e.Summary)
	}
	return nil
}
