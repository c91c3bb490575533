package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/reference"
)

// validName matches folder names: letters, digits, underscore, hyphen and space.
var validName = regexp.MustCompile(`^[\p{L}\p{N}_\- ]+$`)

// ValidateFolderName trims name and checks its character set.
func ValidateFolderName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || !validName.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", failure.ErrInvalidName, name)
	}
	return trimmed, nil
}

// ChildrenOf returns the direct children of a folder sorted by name.
// The children of "-1" are the top-level user folders.
func (c *Catalog) ChildrenOf(id string) []*reference.Folder {
	var out []*reference.Folder
	for _, f := range c.folders {
		if f.ParentID == id {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return folderLess(out[i].ID, out[j].ID)
	})
	return out
}

// DescendantsOf returns the ids of every folder below id, breadth first.
func (c *Catalog) DescendantsOf(id string) []string {
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range c.ChildrenOf(cur) {
			out = append(out, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return out
}

// TrashedFolders returns every folder below Trash.
func (c *Catalog) TrashedFolders() []string {
	return c.DescendantsOf(reference.TrashFolderID)
}

// IsTrashed reports whether a folder is Trash or lies below it.
func (c *Catalog) IsTrashed(id string) bool {
	seen := make(map[string]bool)
	for !seen[id] {
		if id == reference.TrashFolderID {
			return true
		}
		seen[id] = true
		f, ok := c.folders[id]
		if !ok {
			return false
		}
		id = f.ParentID
	}
	return false
}

// WalkTree returns the folders of the subtree rooted at id (id first) and the
// documents in any of them. Walking Trash includes its orphans.
func (c *Catalog) WalkTree(id string) ([]string, []int64) {
	folders := append([]string{id}, c.DescendantsOf(id)...)
	seen := make(map[int64]bool)
	var docs []int64
	for _, fid := range folders {
		for _, did := range c.Members(fid) {
			if !seen[did] {
				seen[did] = true
				docs = append(docs, did)
			}
		}
	}
	sortIDs(docs)
	return folders, docs
}

// AddFolder creates a folder under parent and returns its id.
func (c *Catalog) AddFolder(name, parent string) (string, error) {
	name, err := ValidateFolderName(name)
	if err != nil {
		return "", err
	}
	if err := c.checkParent(parent); err != nil {
		return "", err
	}
	if err := c.checkSiblingName(parent, name, ""); err != nil {
		return "", err
	}

	id := strconv.FormatInt(c.nextFolder, 10)
	c.nextFolder++
	c.folders[id] = &reference.Folder{ID: id, Name: name, ParentID: parent}
	c.MarkFolder(id)
	c.logger.Debug("folder added", zap.String("folder_id", id), zap.String("parent_id", parent))
	return id, nil
}

// RenameFolder renames a real folder.
func (c *Catalog) RenameFolder(id, name string) error {
	f, err := c.realFolder(id)
	if err != nil {
		return err
	}
	name, err = ValidateFolderName(name)
	if err != nil {
		return err
	}
	if err := c.checkSiblingName(f.ParentID, name, id); err != nil {
		return err
	}
	f.Name = name
	c.MarkFolder(id)
	return nil
}

// MoveResult says what a reparent meant for the subtree.
type MoveResult struct {
	SoftTrashed bool    `json:"soft_trashed"`
	Restored    bool    `json:"restored"`
	Documents   []int64 `json:"documents,omitempty"` // Documents whose flags changed
}

// Reparent moves a folder under newParent. Moving a live folder into Trash
// is a soft-trash that keeps memberships and flags. Moving a trashed folder
// back out restores it and clears deletionPending for its whole subtree.
func (c *Catalog) Reparent(id, newParent string) (MoveResult, error) {
	var res MoveResult
	f, err := c.realFolder(id)
	if err != nil {
		return res, err
	}
	if err := c.checkParent(newParent); err != nil && newParent != reference.TrashFolderID {
		return res, err
	}
	if newParent == id || contains(c.DescendantsOf(id), newParent) {
		return res, fmt.Errorf("%w: cannot move folder %s into its own subtree", failure.ErrInvalidMove, id)
	}
	if f.ParentID == newParent {
		return res, nil
	}
	if err := c.checkSiblingName(newParent, f.Name, id); err != nil {
		return res, err
	}

	wasTrashed := c.IsTrashed(id)
	f.ParentID = newParent
	c.MarkFolder(id)
	nowTrashed := c.IsTrashed(id)

	switch {
	case !wasTrashed && nowTrashed:
		res.SoftTrashed = true
		c.logger.Debug("folder soft-trashed", zap.String("folder_id", id))
	case wasTrashed && !nowTrashed:
		res.Restored = true
		_, docs := c.WalkTree(id)
		for _, did := range docs {
			doc := c.docs[did]
			if doc.DeletionPending != reference.FlagFalse {
				doc.DeletionPending = reference.FlagFalse
				c.MarkDocument(did)
				res.Documents = append(res.Documents, did)
			}
		}
		c.logger.Debug("folder restored", zap.String("folder_id", id), zap.Int("documents", len(res.Documents)))
	}
	return res, nil
}

// DeleteResult says what a folder delete removed.
type DeleteResult struct {
	SoftTrashed bool     `json:"soft_trashed"`
	Folders     []string `json:"folders,omitempty"`   // Folders permanently removed
	Documents   []int64  `json:"documents,omitempty"` // Documents permanently removed
}

// DeleteFolder soft-trashes a live folder, or permanently deletes a folder
// already in Trash together with its subtree. A permanent delete drops the
// subtree memberships and deletes every document left with none; documents
// still filed elsewhere are kept.
func (c *Catalog) DeleteFolder(id string) (DeleteResult, error) {
	var res DeleteResult
	if _, err := c.realFolder(id); err != nil {
		return res, err
	}

	if !c.IsTrashed(id) {
		if _, err := c.Reparent(id, reference.TrashFolderID); err != nil {
			return res, err
		}
		res.SoftTrashed = true
		return res, nil
	}

	folders, docs := c.WalkTree(id)
	removed := make(map[string]bool, len(folders))
	for _, fid := range folders {
		removed[fid] = true
	}

	for _, did := range docs {
		doc := c.docs[did]
		var kept []string
		for _, fid := range doc.Folders {
			if removed[fid] {
				c.removeMember(fid, did)
				continue
			}
			kept = append(kept, fid)
		}
		doc.Folders = kept
		c.MarkDocument(did)
		if len(kept) == 0 {
			c.deleteDocument(did)
			res.Documents = append(res.Documents, did)
			continue
		}
		c.evaluateOrphan(did)
	}

	for _, fid := range folders {
		delete(c.folders, fid)
		delete(c.folderDocs, fid)
		c.MarkFolder(fid)
	}
	res.Folders = folders
	c.logger.Debug("folder deleted", zap.String("folder_id", id),
		zap.Int("folders", len(folders)), zap.Int("documents", len(res.Documents)))
	return res, nil
}

// TreeNode is one folder in the display tree.
type TreeNode struct {
	Folder   reference.Folder `json:"folder"`
	Count    int              `json:"count"` // Direct members
	Children []*TreeNode      `json:"children,omitempty"`
}

// SortedTree returns the display tree: All (holding the user folders),
// Needs Review and Trash (holding trashed folders), each level sorted by name.
func (c *Catalog) SortedTree() []*TreeNode {
	var nodes []*TreeNode
	for _, sf := range reference.SystemFolders() {
		node := &TreeNode{Folder: sf, Count: len(c.Members(sf.ID))}
		if sf.ID != reference.ReviewFolderID {
			node.Children = c.subtree(sf.ID)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func (c *Catalog) subtree(id string) []*TreeNode {
	var nodes []*TreeNode
	for _, child := range c.ChildrenOf(id) {
		nodes = append(nodes, &TreeNode{
			Folder:   *child,
			Count:    len(c.folderDocs[child.ID]),
			Children: c.subtree(child.ID),
		})
	}
	return nodes
}

func (c *Catalog) realFolder(id string) (*reference.Folder, error) {
	if reference.IsSystemFolder(id) {
		return nil, fmt.Errorf("%w: system folder %s cannot be changed", failure.ErrInvalidMove, id)
	}
	f, ok := c.folders[id]
	if !ok {
		return nil, fmt.Errorf("%w: folder %s", failure.ErrNotFound, id)
	}
	return f, nil
}

// checkParent accepts the top level and real folders as parents.
func (c *Catalog) checkParent(parent string) error {
	if parent == reference.RootParentID {
		return nil
	}
	if reference.IsSystemFolder(parent) {
		return fmt.Errorf("%w: folder %s cannot hold subfolders", failure.ErrInvalidMove, parent)
	}
	if _, ok := c.folders[parent]; !ok {
		return fmt.Errorf("%w: parent folder %s", failure.ErrNotFound, parent)
	}
	return nil
}

func (c *Catalog) checkSiblingName(parent, name, except string) error {
	for _, sib := range c.ChildrenOf(parent) {
		if sib.ID != except && sib.Name == name {
			return fmt.Errorf("%w: %q under %s", failure.ErrDuplicateSiblingName, name, parent)
		}
	}
	return nil
}
