package database

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/gym-gate/internal/biometric"
)

// FaceIndex wraps an HNSW graph over enrolled member face vectors. It is an
// optional acceleration for similarity queries; the exact matching policies
// in the biometric engine always run over the candidates it returns.
type FaceIndex struct {
	graph       *hnsw.Graph[string]
	savedGraph  *hnsw.SavedGraph[string] // for persistence
	uidToMember map[string]*Member
	mu          sync.RWMutex
}

// NewFaceIndex creates a new empty face index.
func NewFaceIndex() *FaceIndex {
	return &FaceIndex{
		uidToMember: make(map[string]*Member),
	}
}

func newFaceGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	return g
}

// BuildFromMembers builds the index from enrolled members.
func (fi *FaceIndex) BuildFromMembers(members []Member) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	if len(members) == 0 {
		fi.graph = nil
		fi.savedGraph = nil
		fi.uidToMember = make(map[string]*Member)
		return nil
	}

	g := newFaceGraph()
	fi.uidToMember = make(map[string]*Member, len(members))

	for i := range members {
		m := &members[i]
		if len(m.FaceVector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(m.UID, m.FaceVector))
		fi.uidToMember[m.UID] = m
	}

	fi.graph = g
	return nil
}

// Search finds the k nearest enrolled members to the query vector.
// Returns member UIDs and their Euclidean distances.
func (fi *FaceIndex) Search(query []float32, k int) ([]string, []float64, error) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	if fi.graph == nil && fi.savedGraph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[string]
	if fi.savedGraph != nil {
		neighbors = fi.savedGraph.Search(query, k)
	} else {
		neighbors = fi.graph.Search(query, k)
	}

	uids := make([]string, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		d, err := biometric.EuclideanDistance(query, n.Value)
		if err != nil {
			// Node with stale dimensions, leave it out of the results.
			continue
		}
		uids = append(uids, n.Key)
		distances = append(distances, d)
	}

	return uids, distances, nil
}

// GetMember returns the indexed member for a UID, nil when not indexed.
func (fi *FaceIndex) GetMember(uid string) *Member {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.uidToMember[uid]
}

// Add adds a single enrolled member to the index.
func (fi *FaceIndex) Add(m *Member) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	if len(m.FaceVector) == 0 {
		return
	}

	if fi.savedGraph != nil {
		fi.savedGraph.Add(hnsw.MakeNode(m.UID, m.FaceVector))
	} else {
		if fi.graph == nil {
			fi.graph = newFaceGraph()
		}
		fi.graph.Add(hnsw.MakeNode(m.UID, m.FaceVector))
	}
	fi.uidToMember[m.UID] = m
}

// Delete removes a member from the index. HNSW does not support true
// deletion; removing the UID from the lookup map removes it from results.
func (fi *FaceIndex) Delete(uid string) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	delete(fi.uidToMember, uid)
}

// Count returns the number of indexed members.
func (fi *FaceIndex) Count() int {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return len(fi.uidToMember)
}

// Save persists the graph and member metadata to disk.
func (fi *FaceIndex) Save(path string) error {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	if fi.graph == nil && fi.savedGraph == nil {
		// Best-effort cleanup when the index is empty.
		_ = os.Remove(path)
		_ = os.Remove(path + ".members")
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create face index file: %w", err)
	}
	defer f.Close()

	if fi.savedGraph != nil {
		err = fi.savedGraph.Export(f)
	} else {
		err = fi.graph.Export(f)
	}
	if err != nil {
		return fmt.Errorf("exporting face index graph: %w", err)
	}

	members := make([]Member, 0, len(fi.uidToMember))
	for _, m := range fi.uidToMember {
		members = append(members, *m)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(members); err != nil {
		return fmt.Errorf("encoding member metadata: %w", err)
	}
	if err := os.WriteFile(path+".members", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing member metadata: %w", err)
	}

	return nil
}

// Load loads the graph and member metadata from disk.
func (fi *FaceIndex) Load(path string) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("face index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load face index: %w", err)
	}

	data, err := os.ReadFile(path + ".members")
	if err != nil {
		return fmt.Errorf("reading member metadata: %w", err)
	}

	var members []Member
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&members); err != nil {
		return fmt.Errorf("decoding member metadata: %w", err)
	}

	fi.savedGraph = saved
	fi.uidToMember = make(map[string]*Member, len(members))
	for i := range members {
		fi.uidToMember[members[i].UID] = &members[i]
	}

	return nil
}
