package entity

// Compilation is a curated, possibly pinned, set of events.
type Compilation struct {
	ID       int64   `json:"id" db:"id"`
	Title    string  `json:"title" db:"title"`
	Pinned   bool    `json:"pinned" db:"pinned"`
	EventIDs []int64 `json:"-"`
}

// CompilationView is what readers of a compilation get back.
type CompilationView struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Pinned bool         `json:"pinned"`
	Events []*EventFull `json:"events"`
}
