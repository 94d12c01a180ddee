package scans

import (
	"context"
	"log"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hzerradi/foodscan/internal/application"
	aiport "github.com/hzerradi/foodscan/internal/domain/ai"
	"github.com/hzerradi/foodscan/internal/domain/food"
	domain "github.com/hzerradi/foodscan/internal/domain/scans"
)

// Hard per-calendar-day caps and bounds. The quota is calendar-day local
// time, not a rolling 24h window.
const (
	DefaultDailyLimit   = 2
	DefaultHistoryLimit = 50

	maxRecordIngredients = 8
	maxRecordRecipes     = 3
)

// User-facing messages. Wording is contractual; do not translate.
const (
	MsgNoUser     = "Utilisateur non identifié"
	MsgDailyLimit = "Limite quotidienne atteinte"
	MsgGeneric    = "Erreur lors de l'analyse de l'image."
	MsgAPI        = "Problème de connexion à l'API. Vérifiez votre clé API OpenRouter."
	MsgJSON       = "Erreur de traitement des données. Réessayez dans quelques instants."
	MsgNetwork    = "Problème de connexion internet. Vérifiez votre connexion."
)

var (
	dishNamePattern = regexp.MustCompile(`plat de ([^(]+)`)
	categoryPattern = regexp.MustCompile(`\(([^)]+)\)`)
)

// SubmitResult is the discriminated outcome of a scan submission. Public
// entry points never raise across this boundary.
type SubmitResult struct {
	Success bool               `json:"success"`
	Msg     string             `json:"msg,omitempty"`
	Record  *domain.ScanRecord `json:"record,omitempty"`
}

// Service implements the scan use-cases: gate, drive and record a single
// scan operation. The submit path runs under a mutex so the quota check and
// the history append form one atomic unit.
type Service struct {
	Store  domain.HistoryStore
	AI     aiport.Client
	Vision domain.Describer
	Clock  application.Clock

	// Confidence produces the record's confidence score (int 0-100). The
	// default is a placeholder random 90-99, standing in for a real metric.
	Confidence func() int

	DailyLimit   int
	HistoryLimit int

	mu       sync.Mutex
	history  []*domain.ScanRecord
	scanning bool
}

// New loads the persisted history once and returns a ready service.
func New(ctx context.Context, store domain.HistoryStore, client aiport.Client, vision domain.Describer, clock application.Clock) (*Service, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Service{
		Store:        store,
		AI:           client,
		Vision:       vision,
		Clock:        clock,
		Confidence:   func() int { return rand.Intn(10) + 90 },
		DailyLimit:   DefaultDailyLimit,
		HistoryLimit: DefaultHistoryLimit,
		history:      records,
	}, nil
}

// Scanning reports whether a submission is currently in flight.
func (s *Service) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// SubmitScan gates a scan behind the daily quota, drives the
// describe-analyze pipeline, records the result and persists the history.
// All failures come back as a message, never as an error.
func (s *Service) SubmitScan(ctx context.Context, imageRef, userID string) SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == "" {
		return SubmitResult{Success: false, Msg: MsgNoUser}
	}

	today := s.Clock.Now()
	scansToday := 0
	for _, rec := range s.history {
		if rec.UserID == userID && sameDay(rec.CreatedAt, today) {
			scansToday++
		}
	}
	if scansToday >= s.DailyLimit {
		s.scanning = false
		return SubmitResult{Success: false, Msg: MsgDailyLimit}
	}

	s.scanning = true
	defer func() { s.scanning = false }()

	record, err := s.runScan(ctx, imageRef, userID)
	if err != nil {
		log.Printf("scan error: user=%s err=%v", userID, err)
		return SubmitResult{Success: false, Msg: classifyMessage(err)}
	}

	s.history = append([]*domain.ScanRecord{record}, s.history...)
	if len(s.history) > s.HistoryLimit {
		s.history = s.history[:s.HistoryLimit]
	}
	// Write-through: memory first, then durable storage. A failed write
	// loses at most this record on restart.
	if err := s.Store.Save(ctx, s.history); err != nil {
		log.Printf("history save error: %v", err)
	}

	return SubmitResult{Success: true, Record: record}
}

// runScan is the network-facing part of a submission.
func (s *Service) runScan(ctx context.Context, imageRef, userID string) (*domain.ScanRecord, error) {
	if !s.AI.TestConnection(ctx) {
		return nil, aiport.ErrUnreachable
	}

	description, err := s.Vision.Describe(ctx, imageRef)
	if err != nil {
		return nil, err
	}

	analysis, err := s.AI.AnalyzeFood(ctx, description)
	if err != nil {
		return nil, err
	}

	title, category := extractDish(description, analysis)

	now := s.Clock.Now()
	return &domain.ScanRecord{
		ID:        domain.ScanID(strconv.FormatInt(now.UnixMilli(), 10)),
		ImageRef:  imageRef,
		CreatedAt: now,
		UserID:    userID,
		Result: domain.ScanResult{
			Title:           title,
			Category:        category,
			Confidence:      s.Confidence(),
			Ingredients:     cleanIngredients(analysis.Ingredients),
			Recipes:         cleanRecipes(analysis.Recipes),
			NutritionalInfo: analysis.NutritionalInfo,
		},
	}, nil
}

// extractDish pulls the display title and category out of the description
// text, falling back to the first parsed ingredient or generic labels.
func extractDish(description string, analysis food.Analysis) (string, string) {
	title := "Plat détecté"
	if m := dishNamePattern.FindStringSubmatch(description); m != nil {
		title = strings.TrimSpace(m[1])
	} else if len(analysis.Ingredients) > 0 && analysis.Ingredients[0] != "" {
		title = analysis.Ingredients[0]
	}

	category := "Plat cuisiné"
	if m := categoryPattern.FindStringSubmatch(description); m != nil {
		category = m[1]
	}
	return title, category
}

func cleanIngredients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ing := range in {
		if strings.TrimSpace(ing) == "" {
			continue
		}
		out = append(out, ing)
		if len(out) == maxRecordIngredients {
			break
		}
	}
	return out
}

func cleanRecipes(in []food.Recipe) []food.Recipe {
	out := make([]food.Recipe, 0, len(in))
	for _, r := range in {
		if r.Name == "" || r.Instructions == nil {
			continue
		}
		out = append(out, r)
		if len(out) == maxRecordRecipes {
			break
		}
	}
	return out
}

// classifyMessage picks the user-facing message by inspecting the error
// text for known substrings.
func classifyMessage(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api"):
		return MsgAPI
	case strings.Contains(msg, "json"):
		return MsgJSON
	case strings.Contains(msg, "network"):
		return MsgNetwork
	default:
		return MsgGeneric
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

// HistoryFor returns the user's records, newest first.
func (s *Service) HistoryFor(userID string) []*domain.ScanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.ScanRecord, 0)
	for _, rec := range s.history {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}

// ClearHistory removes one user's records, or everything when userID is
// empty. Either way the analysis client's response cache is dropped too.
func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if userID == "" {
		s.history = nil
		err = s.Store.Clear(ctx)
	} else {
		kept := make([]*domain.ScanRecord, 0, len(s.history))
		for _, rec := range s.history {
			if rec.UserID != userID {
				kept = append(kept, rec)
			}
		}
		s.history = kept
		err = s.Store.Save(ctx, kept)
	}
	s.AI.ClearCache()
	return err
}

// Stats counts total / last-7-days / last-30-days records, optionally
// scoped to one user ("" = everyone).
func (s *Service) Stats(userID string) domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	const (
		week  = 7 * 24 * time.Hour
		month = 30 * 24 * time.Hour
	)
	now := s.Clock.Now()

	var st domain.Stats
	for _, rec := range s.history {
		if userID != "" && rec.UserID != userID {
			continue
		}
		st.TotalScans++
		age := now.Sub(rec.CreatedAt)
		if age < week {
			st.ThisWeek++
		}
		if age < month {
			st.ThisMonth++
		}
	}
	return st
}

// RecipesByIngredients proxies to the analysis client; failures degrade to
// an empty list.
func (s *Service) RecipesByIngredients(ctx context.Context, ingredients []string) []food.Recipe {
	recipes, err := s.AI.RecipesByIngredients(ctx, ingredients)
	if err != nil {
		log.Printf("recipes fetch error: %v", err)
		return []food.Recipe{}
	}
	return recipes
}

// NutritionalInfo proxies to the analysis client. Unlike the recipe path,
// failures are propagated.
func (s *Service) NutritionalInfo(ctx context.Context, foodName string) (food.NutritionalInfo, error) {
	return s.AI.NutritionalInfo(ctx, foodName)
}

// TestConnection reports endpoint reachability.
func (s *Service) TestConnection(ctx context.Context) bool {
	return s.AI.TestConnection(ctx)
}

// ProviderQuota returns the provider-side key quota, best effort.
func (s *Service) ProviderQuota(ctx context.Context) aiport.Quota {
	return s.AI.CheckQuota(ctx)
}
