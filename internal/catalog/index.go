package catalog

import (
	"math"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/matching"
	"beleggingsmatch/internal/store"
)

// Match is a resolved provider reference.
type Match struct {
	DienstID   string
	Name       string
	Similarity float64
}

// minSimilarity below which a free-text provider reference is not resolved.
const minSimilarity = 0.55

// Service keeps an in-memory provider index over the store for name
// resolution and report enrichment.
type Service struct {
	db      *store.Database
	mu      sync.RWMutex
	entries []indexEntry
	byID    map[string]store.Provider
}

type indexEntry struct {
	dienstID   string
	name       string
	normalized string
	tokens     []string
}

func NewService(db *store.Database) *Service {
	return &Service{db: db, byID: make(map[string]store.Provider)}
}

// Reload rebuilds the index from the provider catalog. Call after reseeding.
func (s *Service) Reload() error {
	rows, err := s.db.ListProviders()
	if err != nil {
		return err
	}
	entries := make([]indexEntry, 0, len(rows))
	byID := make(map[string]store.Provider, len(rows))
	for _, row := range rows {
		normalized := normalize(row.Name)
		entries = append(entries, indexEntry{
			dienstID:   row.DienstID,
			name:       row.Name,
			normalized: normalized,
			tokens:     strings.Fields(normalized),
		})
		byID[row.DienstID] = row
	}
	s.mu.Lock()
	s.entries = entries
	s.byID = byID
	s.mu.Unlock()
	logrus.WithField("providers", len(entries)).Debug("catalog index rebuilt")
	return nil
}

// Count returns the number of indexed providers.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Providers returns the indexed catalog rows.
func (s *Service) Providers() []store.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Provider, 0, len(s.byID))
	for _, entry := range s.entries {
		out = append(out, s.byID[entry.dienstID])
	}
	return out
}

// Get returns an indexed provider by dienst id.
func (s *Service) Get(dienstID string) (store.Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.byID[strings.ToLower(strings.TrimSpace(dienstID))]
	return row, ok
}

// Resolve maps a free-text provider reference (a bank name typed by the user
// or returned by text analysis) onto a dienst id. Exact dienst ids pass
// through; otherwise the closest catalog name wins if it is similar enough.
func (s *Service) Resolve(reference string) (Match, bool) {
	normalized := normalize(reference)
	if normalized == "" {
		return Match{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if row, ok := s.byID[strings.ReplaceAll(normalized, " ", "_")]; ok {
		return Match{DienstID: row.DienstID, Name: row.Name, Similarity: 1}, true
	}

	var best Match
	for _, entry := range s.entries {
		sim := similarity(normalized, entry.normalized)
		// a token-level hit ("helderbank" against "helderbank zelf beleggen")
		// counts for more than raw edit distance suggests
		for _, token := range entry.tokens {
			if tokenSim := similarity(normalized, token); tokenSim > sim {
				sim = tokenSim
			}
		}
		if sim > best.Similarity {
			best = Match{DienstID: entry.dienstID, Name: entry.name, Similarity: sim}
		}
	}
	if best.Similarity < minSimilarity {
		return Match{}, false
	}
	return best, true
}

// ResolveAll maps a list of references, dropping the unresolvable ones.
func (s *Service) ResolveAll(references []string) []string {
	var ids []string
	for _, ref := range references {
		if match, ok := s.Resolve(ref); ok {
			ids = append(ids, match.DienstID)
		} else {
			logrus.WithField("reference", ref).Debug("provider reference not resolved")
		}
	}
	return ids
}

// Describe returns the full description for a match, used to enrich reports.
func (s *Service) Describe(dienstID string) string {
	row, ok := s.Get(dienstID)
	if !ok {
		return ""
	}
	return row.Description
}

// ToMatchingProviders converts the indexed catalog to engine inputs, applying
// amount-dependent cost tiers through the store.
func (s *Service) ToMatchingProviders(bedrag float64) ([]matching.Provider, error) {
	return s.db.ProvidersForMatching(bedrag)
}

func normalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}

func similarity(a, b string) float64 {
	aRunes := []rune(a)
	bRunes := []rune(b)
	if len(aRunes) == 0 && len(bRunes) == 0 {
		return 1
	}
	if len(aRunes) == 0 || len(bRunes) == 0 {
		return 0
	}

	dist := levenshtein(aRunes, bRunes)
	maxLen := math.Max(float64(len(aRunes)), float64(len(bRunes)))
	score := 1 - float64(dist)/maxLen
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func levenshtein(a, b []rune) int {
	rows := len(a) + 1
	cols := len(b) + 1

	dp := make([]int, rows*cols)
	index := func(r, c int) int { return r*cols + c }

	for r := 0; r < rows; r++ {
		dp[index(r, 0)] = r
	}
	for c := 0; c < cols; c++ {
		dp[index(0, c)] = c
	}

	for r := 1; r < rows; r++ {
		for c := 1; c < cols; c++ {
			cost := 0
			if a[r-1] != b[c-1] {
				cost = 1
			}
			deletion := dp[index(r-1, c)] + 1
			insertion := dp[index(r, c-1)] + 1
			substitution := dp[index(r-1, c-1)] + cost
			dp[index(r, c)] = minInt(deletion, insertion, substitution)
		}
	}
	return dp[index(rows-1, cols-1)]
}

func minInt(values ...int) int {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
