package resolver

import (
	"sync"

	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/did"
)

// Static resolves from a fixed set of documents. It is safe for concurrent use.
type Static struct {
	mu   sync.RWMutex
	docs map[did.DID]*did.Document
}

func NewStatic(docs ...*did.Document) (*Static, error) {
	s := &Static{docs: make(map[did.DID]*did.Document, len(docs))}
	for _, doc := range docs {
		if err := s.Add(doc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add stores a copy of doc, replacing any document for the same subject.
func (s *Static) Add(doc *did.Document) error {
	subject, err := doc.Subject()
	if err != nil {
		return errs.New(errs.InvalidArgument, "resolver.Static.Add", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[subject] = doc.Clone()
	return nil
}

func (s *Static) Resolve(id did.DID) (*did.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, errs.Errorf(errs.NotFound, "resolver.Static.Resolve", "no document for %s", id)
	}
	return doc.Clone(), nil
}
