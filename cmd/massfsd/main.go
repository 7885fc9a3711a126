package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"massfs/internal/drive"
	"massfs/internal/service"
	"massfs/internal/usbhost"
)

var (
	logLevel  string
	logFormat string
	maxDrives int
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "massfsd",
		Short: "Mounts USB Mass Storage devices as FAT volumes and serves filesystem requests",
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text, json)")
	root.PersistentFlags().IntVar(&maxDrives, "max-drives", drive.DriveMax, "maximum number of concurrently mounted drives (logged at startup only; the mount-slot pool is fixed at DriveMax)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newDrivesCmd())
	return root
}

func newLogger() (*logrus.Entry, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(level)
	if logFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logrus.NewEntry(log), nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the drive manager until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			host := usbhost.NewHost(log)
			defer host.Close()

			mgr := drive.NewManager(host, usbhost.MassStorageBulkOnly, log)
			if err := mgr.Initialize(); err != nil {
				return fmt.Errorf("initialize drive manager: %w", err)
			}
			defer mgr.Finalize()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.WithField("max_drives", maxDrives).Info("massfsd: serving")
			<-ctx.Done()
			log.Info("massfsd: shutting down")
			return nil
		},
	}
}

func newDrivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List currently mounted drives and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			host := usbhost.NewHost(log)
			defer host.Close()

			mgr := drive.NewManager(host, usbhost.MassStorageBulkOnly, log)
			if err := mgr.Initialize(); err != nil {
				return fmt.Errorf("initialize drive manager: %w", err)
			}
			defer mgr.Finalize()

			svc := service.New(mgr, log)
			count := svc.MountedDriveCount()
			ids := make([]int64, count)
			svc.ListMountedDrives(ids)

			if count == 0 {
				fmt.Println("no drives mounted")
				return nil
			}
			for _, id := range ids {
				label, err := svc.GetLabel(id)
				if err != nil {
					fmt.Printf("%d: <error: %v>\n", id, err)
					continue
				}
				fmt.Printf("%d: label=%q\n", id, label)
			}
			return nil
		},
	}
}
