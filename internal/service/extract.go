package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rktik/cortex/internal/domain"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/pages"
	"github.com/rktik/cortex/internal/probe"
	"github.com/rktik/cortex/internal/repository"
)

var (
	// tagPattern matches "#" followed by 1-32 non-space characters.
	tagPattern = regexp.MustCompile(`#(\S{1,32})`)

	// mentionPattern matches "@" followed by 3-80 non-space characters.
	mentionPattern = regexp.MustCompile(`@(\S{3,80})`)

	// linkPattern matches anything that looks remotely like a URL: an
	// optional scheme, a dot and a 2-3 character suffix somewhere in a
	// run of non-space characters.
	linkPattern = regexp.MustCompile(`((?:https?://)?\S+\.\w{2,3}\S*)`)
)

// articleLengthMin is the page text length beyond which an article body
// would be attached as its own percept. Automatic text attachment is
// currently disabled; bodies over this length are only logged.
const articleLengthMin = 300

// Mention pairs the matched mention text with the resolved identity.
type Mention struct {
	Text     string
	Identity *domain.Identity
}

// ExtractService turns free-form thought text into percepts: tags,
// mentions, links and linked pictures.
type ExtractService struct {
	identityRepo *repository.IdentityRepository
	perceptRepo  *repository.PerceptRepository
	prober       probe.Prober
	extractor    pages.Extractor
	logger       *logger.Logger
}

// NewExtractService creates a new extract service
func NewExtractService(
	identityRepo *repository.IdentityRepository,
	perceptRepo *repository.PerceptRepository,
	prober probe.Prober,
	extractor pages.Extractor,
	log *logger.Logger,
) *ExtractService {
	return &ExtractService{
		identityRepo: identityRepo,
		perceptRepo:  perceptRepo,
		prober:       prober,
		extractor:    extractor,
		logger:       log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *ExtractService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// ScanTags finds tags of the form "#<tag>" with 1-32 non-space characters.
// Tags are returned in first-occurrence order. A "#tag" occurrence is
// removed from the text only while it sits at the trimmed end, walking
// matches tail-inward; if removal would leave the text empty, the
// original text is returned unchanged.
func (s *ExtractService) ScanTags(text string) ([]string, string) {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return []string{}, text
	}

	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}

	cleaned := text
	for i := len(matches) - 1; i >= 0; i-- {
		token := "#" + matches[i][1]
		idx := strings.LastIndex(cleaned, token)
		if idx < 0 {
			continue
		}
		if idx+len(token) == len(strings.TrimRightFunc(cleaned, unicode.IsSpace)) {
			cleaned = cleaned[:idx] + cleaned[idx+len(token):]
		}
	}

	if cleaned == "" {
		return tags, text
	}
	return tags, cleaned
}

// ScanMentions finds mentions of the form "@<username>" with 3-80
// non-space characters and resolves them against persona usernames.
// Unresolved mentions are dropped with a warning. The text is never
// mutated by mention scanning.
func (s *ExtractService) ScanMentions(ctx context.Context, text string) ([]Mention, error) {
	var mentions []Mention
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		username := m[1]
		ident, err := s.identityRepo.GetPersonaByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.log(ctx).WithField("mention", username).Warn("No identity found for mention")
				continue
			}
			return nil, fmt.Errorf("resolve mention %q: %w", username, err)
		}
		mentions = append(mentions, Mention{Text: username, Identity: ident})
	}
	return mentions, nil
}

// ScanLinks finds URL-shaped tokens in the text and probes each for
// availability, processing candidates in reverse textual order. A
// candidate without a scheme gets "http://" prepended. Rejected URLs are
// remembered for the rest of the call. An accepted candidate whose
// occurrence sits at the trimmed end of the text is stripped, walking
// tail-inward. Returns the accepted probe results in acceptance order
// and the cleaned text.
func (s *ExtractService) ScanLinks(ctx context.Context, text string) ([]*probe.Result, string) {
	candidates := linkPattern.FindAllString(text, -1)
	if len(candidates) == 0 {
		return []*probe.Result{}, text
	}

	results := make([]*probe.Result, 0, len(candidates))
	rejects := make(map[string]struct{})
	cleaned := text

	for i := len(candidates) - 1; i >= 0; i-- {
		candidate := candidates[i]
		schemed := candidate
		if !strings.HasPrefix(candidate, "http") {
			schemed = "http://" + candidate
		}

		if _, rejected := rejects[schemed]; rejected {
			continue
		}

		s.log(ctx).WithField("url", schemed).Debug("Testing potential link for availability")

		res, err := s.prober.Probe(ctx, schemed)
		if err != nil {
			s.log(ctx).WithError(err).Info("Not a suitable link")
			rejects[schemed] = struct{}{}
			continue
		}
		if !res.OK() {
			s.log(ctx).WithFields(logger.Fields{
				"url":    schemed,
				"status": res.StatusCode,
			}).Info("Not a suitable link")
			rejects[schemed] = struct{}{}
			continue
		}

		results = append(results, res)

		idx := strings.LastIndex(cleaned, candidate)
		if idx >= 0 && idx+len(candidate) == len(strings.TrimRightFunc(cleaned, unicode.IsSpace)) {
			cleaned = cleaned[:idx] + cleaned[idx+len(candidate):]
		}
	}

	return results, cleaned
}

// Assemble extracts all attachments hinted at in the text and returns
// the remaining user message plus the percepts, deduplicated. Stages run
// in fixed order, each consuming the previous stage's text: tags, then
// mentions, then links. When link stripping leaves the message empty,
// the first processed link fills it in: the picture filename for an
// image, the page title otherwise. An empty attachment set is not an
// error.
func (s *ExtractService) Assemble(ctx context.Context, text string) (string, []*domain.Percept, error) {
	percepts := make([]*domain.Percept, 0, 4)
	seen := make(map[string]struct{})
	keep := func(p *domain.Percept) {
		if _, ok := seen[p.ID]; ok {
			return
		}
		seen[p.ID] = struct{}{}
		percepts = append(percepts, p)
	}

	tags, text := s.ScanTags(text)
	for _, tag := range tags {
		percept, err := s.tagPercept(ctx, tag)
		if err != nil {
			return "", nil, err
		}
		keep(percept)
	}

	mentions, err := s.ScanMentions(ctx, text)
	if err != nil {
		return "", nil, err
	}
	for _, mention := range mentions {
		percept, err := s.mentionPercept(ctx, mention)
		if err != nil {
			return "", nil, err
		}
		keep(percept)
	}

	links, text := s.ScanLinks(ctx, text)
	for _, link := range links {
		if link.Image() {
			percept, err := s.picturePercept(ctx, link)
			if err != nil {
				return "", nil, err
			}
			keep(percept)

			// Use picture filename as user message if empty
			if text == "" {
				text = link.URL[strings.LastIndex(link.URL, "/")+1:]
			}
			continue
		}

		page, err := s.extractor.Extract(ctx, link.URL)
		if err != nil {
			s.log(ctx).WithError(err).WithField("url", link.URL).Info("Rejecting link, page extraction failed")
			continue
		}

		percept, err := s.linkPercept(ctx, link, page)
		if err != nil {
			return "", nil, err
		}
		keep(percept)

		if len(page.Text) > articleLengthMin {
			// Automatic text attachment is disabled
			s.log(ctx).WithFields(logger.Fields{
				"url":  link.URL,
				"size": len(page.Text),
			}).Debug("Skipping article body attachment")
		}

		if text == "" {
			text = page.Title
		}
	}

	return text, percepts, nil
}

// tagPercept stores or retrieves the shared tag percept for a label.
func (s *ExtractService) tagPercept(ctx context.Context, tag string) (*domain.Percept, error) {
	now := time.Now().UTC()
	canonical := tag
	percept := &domain.Percept{
		ID:        uuid.New().String(),
		Kind:      domain.PerceptKindTag,
		Canonical: &canonical,
		Title:     tag,
		Created:   now,
		Modified:  now,
	}
	created, err := s.perceptRepo.GetOrCreate(ctx, percept)
	if err != nil {
		return nil, fmt.Errorf("tag percept %q: %w", tag, err)
	}
	s.log(ctx).WithFields(logger.Fields{
		"tag": tag,
		"new": created,
	}).Debug("Attached tag percept")
	return percept, nil
}

// mentionPercept stores a mention percept for a resolved identity.
// Mentions are per-occurrence and never shared.
func (s *ExtractService) mentionPercept(ctx context.Context, mention Mention) (*domain.Percept, error) {
	now := time.Now().UTC()
	percept := &domain.Percept{
		ID:         uuid.New().String(),
		Kind:       domain.PerceptKindMention,
		Text:       mention.Text,
		IdentityID: &mention.Identity.ID,
		Created:    now,
		Modified:   now,
	}
	if err := s.perceptRepo.Create(ctx, percept); err != nil {
		return nil, fmt.Errorf("mention percept %q: %w", mention.Text, err)
	}
	return percept, nil
}

// picturePercept stores or retrieves the shared picture percept for an
// image URL.
func (s *ExtractService) picturePercept(ctx context.Context, link *probe.Result) (*domain.Percept, error) {
	now := time.Now().UTC()
	canonical := link.URL
	percept := &domain.Percept{
		ID:        uuid.New().String(),
		Kind:      domain.PerceptKindLinkedPicture,
		Canonical: &canonical,
		URL:       link.URL,
		Created:   now,
		Modified:  now,
	}
	created, err := s.perceptRepo.GetOrCreate(ctx, percept)
	if err != nil {
		return nil, fmt.Errorf("picture percept %q: %w", link.URL, err)
	}
	s.log(ctx).WithFields(logger.Fields{
		"url": link.URL,
		"new": created,
	}).Debug("Attached picture percept")
	return percept, nil
}

// linkPercept stores or retrieves the shared link percept for a URL.
// The page title is kept only when this call created the percept; an
// existing percept keeps its stored title.
func (s *ExtractService) linkPercept(ctx context.Context, link *probe.Result, page *pages.Page) (*domain.Percept, error) {
	now := time.Now().UTC()
	canonical := link.URL
	percept := &domain.Percept{
		ID:        uuid.New().String(),
		Kind:      domain.PerceptKindLink,
		Canonical: &canonical,
		URL:       link.URL,
		Title:     page.Title,
		Created:   now,
		Modified:  now,
	}
	created, err := s.perceptRepo.GetOrCreate(ctx, percept)
	if err != nil {
		return nil, fmt.Errorf("link percept %q: %w", link.URL, err)
	}
	s.log(ctx).WithFields(logger.Fields{
		"url": link.URL,
		"new": created,
	}).Debug("Attached link percept")
	return percept, nil
}
