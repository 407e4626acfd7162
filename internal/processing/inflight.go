package processing

import (
	"sort"
	"sync"

	"github.com/dunamismax/passportflow/internal/domain"
)

type Action string

const (
	ActionUpload   Action = "upload"
	ActionCatalog  Action = "catalog"
	ActionProcess  Action = "process"
	ActionOutput   Action = "output"
	ActionDownload Action = "download"
)

// InFlight tracks at most one outstanding request per action. One tracker
// belongs to one wizard session, so sessions sharing a Client never block
// each other.
type InFlight struct {
	mu      sync.Mutex
	pending map[Action]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{pending: make(map[Action]struct{})}
}

// Begin marks action as outstanding and returns the function that clears
// it. A second Begin for the same action before done is called fails with
// domain.ErrInFlight.
func (f *InFlight) Begin(action Action) (done func(), err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.pending[action]; busy {
		return nil, domain.ErrInFlight
	}
	f.pending[action] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.pending, action)
			f.mu.Unlock()
		})
	}, nil
}

func (f *InFlight) Busy(action Action) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.pending[action]
	return busy
}

// Active lists outstanding actions in a stable order.
func (f *InFlight) Active() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Action, 0, len(f.pending))
	for a := range f.pending {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BusyLabel is the text a UI shows on the control that triggered action.
func BusyLabel(action Action) string {
	switch action {
	case ActionUpload:
		return "Uploading..."
	case ActionProcess:
		return "Processing..."
	case ActionOutput:
		return "Generating PDF..."
	case ActionDownload:
		return "Downloading..."
	case ActionCatalog:
		return "Loading sizes..."
	default:
		return "Working..."
	}
}
