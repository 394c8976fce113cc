package domain

// Snapshot is the payload of an initial or refresh load for one project.
type Snapshot struct {
	ProjectID string
	Tasks     []Task
	Groups    Catalog
	Columns   []Column
}
