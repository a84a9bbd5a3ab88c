package reply

import (
	"math/rand/v2"

	"github.com/zhouzirui/calm-companion/backend/internal/analysis/support"
	"github.com/zhouzirui/calm-companion/backend/internal/model/catalog"
)

// Result is a generated reply together with the tag that produced it.
type Result struct {
	Reply string      `json:"reply"`
	Tag   support.Tag `json:"tag"`
}

// Option customises a Service.
type Option func(*Service)

// WithRand replaces the uniform index picker. intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(s *Service) {
		if intn != nil {
			s.intn = intn
		}
	}
}

// WithCatalog swaps the default catalog.
func WithCatalog(store catalog.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.catalog = store
		}
	}
}

// Service classifies user text and picks a canned reply. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	catalog catalog.Store
	intn    func(n int) int
}

// NewService builds a Service over the default catalog.
func NewService(opts ...Option) *Service {
	s := &Service{
		catalog: catalog.New(catalog.Default()),
		intn:    rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs the classifier and then Select.
func (s *Service) Generate(text string) Result {
	return s.Select(support.Classify(text))
}

// Select returns a reply for tag. Crisis always yields the fixed safety message.
func (s *Service) Select(tag support.Tag) Result {
	if tag == support.Crisis {
		return Result{Reply: catalog.CrisisMessage, Tag: support.Crisis}
	}

	// 未知标签使用 general 列表，但结果保留原标签。
	lookup := tag
	if !s.catalog.Has(lookup) {
		lookup = support.General
	}
	options := s.catalog.Options(lookup)
	if len(options) == 0 {
		return Result{Tag: tag}
	}
	return Result{Reply: options[s.intn(len(options))], Tag: tag}
}

// Onboarding returns the greeting shown before any conversation exists.
func (s *Service) Onboarding() string {
	options := s.catalog.Options(support.Onboarding)
	if len(options) == 0 {
		return ""
	}
	return options[0]
}
