// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"cpiofs.sh/archive"
	"cpiofs.sh/memfs"
)

func newListCmd() *cobra.Command {
	var long, tree bool
	var pattern string

	cmd := &cobra.Command{
		Use:   "list [flags] ARCHIVE",
		Short: "List the contents of a CPIO archive",
		Long: heredoc.Doc(`
			Print the member paths of ARCHIVE. With --long each line also
			shows type and permissions, link count, ownership, size and
			symlink targets; with --tree the members are rendered as a
			tree. A glob pattern restricts the flat listing by entry name;
			the --tree rendering always shows every member.
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, gz, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			fsys := memfs.New()
			if err := archive.ReadFS(ctx, src.reader, fsys, archive.WithGzip(gz)); err != nil {
				return fmt.Errorf("could not read archive: %w", err)
			}

			if tree {
				return printTree(cmd, fsys)
			}

			it, err := fsys.Enumerate(memfs.AllDirectories, pattern)
			if err != nil {
				return err
			}
			for {
				entry, ok := it.Next()
				if !ok {
					return nil
				}
				if long {
					printLong(cmd, entry)
				} else {
					cmd.Println(entry.FullPath())
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show metadata for each member")
	cmd.Flags().BoolVar(&tree, "tree", false, "Render the members as a tree")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "Only list entries whose name matches this glob")

	return cmd
}

// modeChar maps kinds to ls-style type characters.
func modeChar(kind memfs.Kind) byte {
	switch kind {
	case memfs.KindDirectory:
		return 'd'
	case memfs.KindSymlink:
		return 'l'
	case memfs.KindCharDevice:
		return 'c'
	case memfs.KindBlockDevice:
		return 'b'
	default:
		return '-'
	}
}

func printLong(cmd *cobra.Command, entry *memfs.Entry) {
	node := entry.Inode()

	perm := make([]byte, 0, 10)
	perm = append(perm, modeChar(node.Kind()))
	const rwx = "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if node.Mode()&(1<<uint(8-i)) != 0 {
			perm = append(perm, rwx[i])
		} else {
			perm = append(perm, '-')
		}
	}

	detail := ""
	switch node.Kind() {
	case memfs.KindSymlink:
		detail = " -> " + node.Target()
	case memfs.KindCharDevice, memfs.KindBlockDevice:
		detail = fmt.Sprintf(" (%d, %d)", node.RDev().Major, node.RDev().Minor)
	}

	cmd.Printf("%s %3d %5d %5d %9s %s %s%s\n",
		perm,
		node.Nlink(),
		node.UID(),
		node.GID(),
		humanize.IBytes(uint64(node.Size())),
		node.ModTime().Format("2006-01-02 15:04"),
		entry.FullPath(),
		detail,
	)
}

func printTree(cmd *cobra.Command, fsys *memfs.Filesystem) error {
	root := treeprint.NewWithRoot("/")
	if err := addTreeNodes(root, fsys.Root()); err != nil {
		return err
	}
	cmd.Print(root.String())
	return nil
}

func addTreeNodes(branch treeprint.Tree, dir *memfs.Entry) error {
	entries, err := dir.Entries()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		node := entry.Inode()
		switch {
		case entry.IsDir():
			child := branch.AddBranch(entry.Name())
			if err := addTreeNodes(child, entry); err != nil {
				return err
			}
		case node.Kind() == memfs.KindSymlink:
			branch.AddNode(entry.Name() + " -> " + node.Target())
		case node.Kind() == memfs.KindRegular:
			branch.AddMetaNode(humanize.IBytes(uint64(node.Size())), entry.Name())
		default:
			branch.AddMetaNode(fmt.Sprintf("%d, %d", node.RDev().Major, node.RDev().Minor), entry.Name())
		}
	}
	return nil
}
