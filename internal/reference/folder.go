package reference

// System folder ids. They exist only in memory.
const (
	AllFolderID    = "-1"
	ReviewFolderID = "-2"
	TrashFolderID  = "-3"

	// RootParentID is the parent id of top-level folders.
	RootParentID = "-1"
)

// System folder display names.
const (
	AllFolderName    = "All"
	ReviewFolderName = "Needs Review"
	TrashFolderName  = "Trash"
)

// Folder is a node of the folder tree.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

// SystemFolders returns the three reserved folders in display order.
func SystemFolders() []Folder {
	return []Folder{
		{ID: AllFolderID, Name: AllFolderName},
		{ID: ReviewFolderID, Name: ReviewFolderName},
		{ID: TrashFolderID, Name: TrashFolderName},
	}
}

// IsSystemFolder reports whether id is one of -1, -2, -3.
func IsSystemFolder(id string) bool {
	return id == AllFolderID || id == ReviewFolderID || id == TrashFolderID
}
