// fatctl is a small inspection and manipulation tool for FAT12/16 disk
// images built on top of the fatcore metadata engine.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aligator/fatcore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "fatctl",
		Short: "Inspect and modify FAT12/16 disk images",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug traces")

	root.AddCommand(infoCmd(), lsCmd(), freeCmd(), touchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openMount opens the image file and mounts it. The boot sector is read
// with an assumed sector size of 512 first, if the BPB declares another
// size the device is reopened with the real one.
func openMount(path string, writable bool) (*fatcore.Mount, afero.File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}

	file, err := afero.NewOsFs().OpenFile(path, flag, 0)
	if err != nil {
		return nil, nil, err
	}

	geo, err := fatcore.ReadGeometry(fatcore.NewFileDevice(file, 512))
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	mount, err := fatcore.NewMount(fatcore.NewFileDevice(file, geo.SectorSize), geo)
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	return mount, file, nil
}

// resolveDir walks a "/A/B/C" path down from the root directory and returns
// the cluster of the directory it names.
func resolveDir(mount *fatcore.Mount, path string) (uint32, error) {
	dir := fatcore.ClusterRoot
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		node, err := mount.LookupNode(dir, part)
		if err != nil {
			return dir, err
		}
		if !node.Dirent.IsSubdir() {
			return dir, fmt.Errorf("%v: not a directory", part)
		}
		dir = uint32(node.Dirent.Cluster)
	}
	return dir, nil
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>",
		Short: "Print the volume geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mount, file, err := openMount(args[0], false)
			if err != nil {
				return err
			}
			defer file.Close()

			geo := mount.Geometry()
			variant := "FAT12"
			if geo.Type == fatcore.FAT16 {
				variant = "FAT16"
			}

			fmt.Printf("variant:             %v\n", variant)
			fmt.Printf("sector size:         %v\n", geo.SectorSize)
			fmt.Printf("sectors per cluster: %v\n", geo.SectorsPerCluster)
			fmt.Printf("cluster size:        %v\n", geo.ClusterSize())
			fmt.Printf("first FAT sector:    %v\n", geo.FATStart)
			fmt.Printf("first root sector:   %v\n", geo.RootStart)
			fmt.Printf("first data sector:   %v\n", geo.DataStart)
			fmt.Printf("data clusters:       %v\n", geo.LastCluster-fatcore.ClusterFirst)
			return nil
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> [path]",
		Short: "List a directory of the image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mount, file, err := openMount(args[0], false)
			if err != nil {
				return err
			}
			defer file.Close()

			dir := fatcore.ClusterRoot
			if len(args) == 2 {
				if dir, err = resolveDir(mount, args[1]); err != nil {
					return err
				}
			}

			for index := 0; ; index++ {
				node, err := mount.GetNode(dir, index)
				if errors.Is(err, fatcore.ErrNotFound) {
					return nil
				}
				if err != nil {
					return err
				}

				info := node.Dirent.FileInfo()
				kind := "-"
				if info.IsDir() {
					kind = "d"
				}
				modified := ""
				if !info.ModTime().IsZero() {
					modified = info.ModTime().Format(time.RFC3339)
				}
				fmt.Printf("%v %10d %20v %v\n", kind, info.Size(), modified, info.Name())
			}
		},
	}
}

func freeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free <image>",
		Short: "Print the free space of the image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mount, file, err := openMount(args[0], false)
			if err != nil {
				return err
			}
			defer file.Close()

			free, err := mount.FreeCount()
			if err != nil {
				return err
			}

			fmt.Printf("%v free clusters, %v bytes\n", free, uint64(free)*uint64(mount.Geometry().ClusterSize()))
			return nil
		},
	}
}

func touchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "touch <image> <name>",
		Short: "Create an empty file in the root directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mount, file, err := openMount(args[0], true)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, err := mount.LookupNode(fatcore.ClusterRoot, args[1]); err == nil {
				return fmt.Errorf("%v: already exists", args[1])
			} else if !errors.Is(err, fatcore.ErrNotFound) {
				return err
			}

			name, err := fatcore.NewShortName(args[1])
			if err != nil {
				return err
			}

			now := time.Now()
			node := fatcore.Node{
				Dirent: fatcore.DirEntry{
					Name:    name,
					Attr:    fatcore.AttrArchive,
					Time:    fatcore.EncodeTime(now),
					Date:    fatcore.EncodeDate(now),
					Cluster: uint16(fatcore.ClusterFree),
				},
			}

			return mount.AddNode(fatcore.ClusterRoot, &node)
		},
	}
}
