package shared

// Media library permissions declared for RBAC.
const (
	PermLibraryView   = "library.view"
	PermLibraryUpload = "library.upload"
	PermLibraryEdit   = "library.edit"
	PermLibraryDelete = "library.delete"
)

// LibraryScopes lists all permissions related to the media library.
func LibraryScopes() []string {
	return []string{
		PermLibraryView,
		PermLibraryUpload,
		PermLibraryEdit,
		PermLibraryDelete,
	}
}
