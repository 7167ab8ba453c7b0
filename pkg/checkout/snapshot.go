package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/money"
)

// Metadata keys written on the processor session.
const (
	MetadataShippingAddress = "shipping_address"
	MetadataOrderNotes      = "order_notes"
	MetadataCart            = "cart_data"
)

const (
	defaultMaxValueLen = 500
	defaultMaxChunks   = 1
)

// nameBudgets are tried in order until the encoded cart fits; -1 keeps names intact.
var nameBudgets = []int{-1, 24, 12, 6, 0}

// ErrMalformedSnapshot marks cart metadata that is present but cannot be decoded.
var ErrMalformedSnapshot = errors.New("malformed cart snapshot")

// SnapshotEntry is the compact copy of a cart line carried through the processor.
type SnapshotEntry struct {
	MedicationID uuid.UUID       `json:"medication_id"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Name         string          `json:"name,omitempty"`
}

// Subtotal returns price times quantity for the entry.
func (e SnapshotEntry) Subtotal() decimal.Decimal {
	return money.LineTotal(e.Price, e.Quantity)
}

// Snapshot is the ordered cart captured at session creation.
type Snapshot []SnapshotEntry

// Total sums every entry subtotal.
func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range s {
		total = total.Add(entry.Subtotal())
	}
	return total
}

// Limits bounds the metadata a snapshot may occupy. MaxValueLen is measured in characters.
type Limits struct {
	MaxValueLen int
	MaxChunks   int
}

func (l Limits) normalized() Limits {
	if l.MaxValueLen <= 0 {
		l.MaxValueLen = defaultMaxValueLen
	}
	if l.MaxChunks <= 0 {
		l.MaxChunks = defaultMaxChunks
	}
	return l
}

// ChunkKey returns the metadata key for the n-th chunk of the cart snapshot.
func ChunkKey(n int) string {
	if n == 0 {
		return MetadataCart
	}
	return fmt.Sprintf("%s_%d", MetadataCart, n)
}

// EncodeSnapshot serializes the snapshot into one or more metadata values. Names
// are shortened and finally dropped when the full encoding does not fit.
func EncodeSnapshot(snapshot Snapshot, limits Limits) (map[string]string, error) {
	limits = limits.normalized()
	capacity := limits.MaxValueLen * limits.MaxChunks

	for _, budget := range nameBudgets {
		encoded, err := json.Marshal(compact(snapshot, budget))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart snapshot")
		}
		if utf8.RuneCount(encoded) > capacity {
			continue
		}
		chunks := splitRunes(string(encoded), limits.MaxValueLen)
		out := make(map[string]string, len(chunks))
		for i, chunk := range chunks {
			out[ChunkKey(i)] = chunk
		}
		return out, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart too large for checkout")
}

// DecodeSnapshot reassembles cart metadata. A missing or blank value yields an
// empty snapshot; undecodable content returns ErrMalformedSnapshot.
func DecodeSnapshot(metadata map[string]string) (Snapshot, error) {
	first := strings.TrimSpace(metadata[MetadataCart])
	if first == "" {
		return Snapshot{}, nil
	}

	var b strings.Builder
	b.WriteString(metadata[MetadataCart])
	for i := 1; ; i++ {
		chunk, ok := metadata[ChunkKey(i)]
		if !ok {
			break
		}
		b.WriteString(chunk)
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(b.String()), &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return snapshot, nil
}

func compact(snapshot Snapshot, budget int) Snapshot {
	out := make(Snapshot, len(snapshot))
	for i, entry := range snapshot {
		entry.Name = truncateRunes(strings.TrimSpace(entry.Name), budget)
		out[i] = entry
	}
	return out
}

func truncateRunes(value string, budget int) string {
	if budget < 0 {
		return value
	}
	if utf8.RuneCountInString(value) <= budget {
		return value
	}
	return string([]rune(value)[:budget])
}

func splitRunes(value string, size int) []string {
	runes := []rune(value)
	if len(runes) <= size {
		return []string{value}
	}
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
