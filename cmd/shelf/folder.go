package main

import (
	"fmt"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/matsen/shelf/internal/catalog"
	"github.com/matsen/shelf/internal/reference"
)

func init() {
	rootCmd.AddCommand(folderCmd)
	folderCmd.AddCommand(folderAddCmd)
	folderCmd.AddCommand(folderRenameCmd)
	folderCmd.AddCommand(folderMoveCmd)
	folderCmd.AddCommand(folderRmCmd)
	folderCmd.AddCommand(folderTreeCmd)
	folderCmd.AddCommand(folderFileCmd)
	folderCmd.AddCommand(folderUnfileCmd)

	folderAddCmd.Flags().StringVar(&folderParent, "parent", reference.RootParentID, "Parent folder id (-1 for top level)")
}

var folderParent string

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage the folder tree",
	Long: `Manage the folder tree.

System folders: -1 All, -2 Needs Review, -3 Trash. Moving a folder into Trash
soft-deletes it with its subtree; removing a trashed folder deletes it for good.`,
}

var folderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := mustOpenSession(ctx)
		defer closeSession(ctx, s)

		id, err := s.AddFolder(args[0], folderParent)
		if err != nil {
			exitWithFailure(err, "creating folder")
		}
		if humanOutput {
			outputHuman("Created folder %s (%s)\n", args[0], id)
		} else {
			outputJSON(map[string]string{"status": "created", "id": id})
		}
		return nil
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := mustOpenSession(ctx)
		defer closeSession(ctx, s)

		if err := s.RenameFolder(args[0], args[1]); err != nil {
			exitWithFailure(err, "renaming folder")
		}
		if humanOutput {
			outputHuman("Renamed folder %s to %s\n", args[0], args[1])
		} else {
			outputJSON(map[string]string{"status": "renamed", "id": args[0], "name": args[1]})
		}
		return nil
	},
}

var folderMoveCmd = &cobra.Command{
	Use:   "move <id> <parent>",
	Short: "Move a folder under another (-1 top level, -3 Trash)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := mustOpenSession(ctx)
		defer closeSession(ctx, s)

		res, err := s.ReparentFolder(args[0], args[1])
		if err != nil {
			exitWithFailure(err, "moving folder")
		}
		if !humanOutput {
			outputJSON(res)
			return nil
		}
		switch {
		case res.SoftTrashed:
			outputHuman("Moved folder %s to Trash (%d document(s) trashed)\n", args[0], len(res.Documents))
		case res.Restored:
			outputHuman("Restored folder %s (%d document(s) restored)\n", args[0], len(res.Documents))
		default:
			outputHuman("Moved folder %s under %s\n", args[0], args[1])
		}
		return nil
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Trash a folder, or delete a trashed folder for good",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := mustOpenSession(ctx)
		defer closeSession(ctx, s)

		res, err := s.DeleteFolder(args[0])
		if err != nil {
			exitWithFailure(err, "removing folder")
		}
		if !humanOutput {
			outputJSON(res)
			return nil
		}
		if res.SoftTrashed {
			outputHuman("Moved folder %s to Trash\n", args[0])
		} else {
			outputHuman("Deleted %d folder(s) and %d document(s)\n", len(res.Folders), len(res.Documents))
		}
		return nil
	},
}

var folderTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the folder tree with document counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := mustOpenSession(ctx)
		defer closeSession(ctx, s)

		nodes, err := s.Tree()
		if err != nil {
			exitWithFailure(err, "reading folders")
		}
		if !humanOutput {
			outputJSON(nodes)
			return nil
		}
		fmt.Print(renderTree(s.Library().Name, nodes))
		return nil
	},
}

// renderTree draws the display tree under a root labelled with the library.
func renderTree(label string, nodes []*catalog.TreeNode) string {
	root := gotree.New(label)
	var add func(parent gotree.Tree, n *catalog.TreeNode)
	add = func(parent gotree.Tree, n *catalog.TreeNode) {
		branch := parent.Add(fmt.Sprintf("%s [%s] (%d)", n.Folder.Name, n.Folder.ID, n.Count))
		for _, c := range n.Children {
			add(branch, c)
		}
	}
	for _, n := range nodes {
		add(root, n)
	}
	return root.Print()
}

var folderFileCmd = &cobra.Command{
	Use:   "file <folder> <id>...",
	Short: "File documents into a folder (-3 trashes them)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ids := mustParseIDs(args[1:])
		s := mustOpenSession(ctx)
		defer closeSession(ctx, s)

		if err := s.AddToFolder(ids, args[0]); err != nil {
			exitWithFailure(err, "filing documents")
		}
		if humanOutput {
			outputHuman("Filed %d document(s) into %s\n", len(ids), args[0])
		} else {
			outputJSON(StatusResponse{Status: "filed", IDs: ids})
		}
		return nil
	},
}

var folderUnfileCmd = &cobra.Command{
	Use:   "unfile <folder> <id>...",
	Short: "Remove documents from a folder",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ids := mustParseIDs(args[1:])
		s := mustOpenSession(ctx)
		defer closeSession(ctx, s)

		if err := s.RemoveFromFolder(ids, args[0]); err != nil {
			exitWithFailure(err, "unfiling documents")
		}
		if humanOutput {
			outputHuman("Removed %d document(s) from %s\n", len(ids), args[0])
		} else {
			outputJSON(StatusResponse{Status: "unfiled", IDs: ids})
		}
		return nil
	},
}
