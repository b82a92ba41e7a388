package core

import "io"

// FileStorage is any service that can persist uploaded documents by object key.
// Application documents (resumes, diplomas...) are stored through it; only
// their metadata lives in the database.
type FileStorage interface {
	// Save stores the content under a generated object key and returns it.
	Save(filename string, r io.Reader) (key string, size int64, err error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
}
