package widget

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"tti-balder/internal/bridge"
	"tti-balder/internal/cart"
	"tti-balder/internal/design"
	"tti-balder/internal/generation"
	"tti-balder/internal/mockup"
	"tti-balder/internal/prompt"
	"tti-balder/internal/session"
)

type CartMode string

// CartRedirect navigates the shopper to the store's /cart/add. CartDelegate
// asks the host page to post /cart/add.js itself, on the shopper's own cart.
const (
	CartRedirect CartMode = "redirect"
	CartDelegate CartMode = "delegate"
)

// ParseCartMode accepts "ajax" as the name embed scripts know the delegate
// mode by.
func ParseCartMode(value string) (CartMode, error) {
	switch m := CartMode(strings.ToLower(strings.TrimSpace(value))); m {
	case CartRedirect, CartDelegate:
		return m, nil
	case "ajax":
		return CartDelegate, nil
	case "":
		return CartRedirect, nil
	default:
		return "", fmt.Errorf("unknown cart mode %q", value)
	}
}

var defaultSizes = []string{"S", "M", "L", "XL", "2XL"}

// overlayAspect is height/width of generated artwork, which is always square.
const overlayAspect = 1.0

type Publisher interface {
	Publish(sessionID string, msg bridge.Message) error
}

type Renderer interface {
	Render(ctx context.Context, scene mockup.Scene) ([]byte, error)
}

// AssetHost turns inline data URL images into short hosted URLs.
type AssetHost interface {
	Host(dataURL string) (string, error)
}

type CartClient interface {
	ProductVariantID(ctx context.Context, pageURL string) (string, error)
}

type Options struct {
	Sessions *session.Store
	Pipeline *generation.Pipeline
	Renderer Renderer
	Bridge   Publisher
	Cart     CartClient
	Assets   AssetHost

	// Colors are the garment colors offered, in display order.
	Colors         []string
	ColorTable     cart.ColorTable
	CartMode       CartMode
	StoreOrigin    string
	ProductPageURL string
	// PushHosts are the image hosts a host page may push http(s) designs
	// from. A leading "*." matches any subdomain. data:image URLs are always
	// accepted.
	PushHosts     []string
	MaxConcurrent int
	Logger        *slog.Logger
}

type Service struct {
	sessions *session.Store
	pipeline *generation.Pipeline
	renderer Renderer
	bridge   Publisher
	cart     CartClient
	assets   AssetHost

	colors         []string
	resolver       cart.Resolver
	cartMode       CartMode
	storeOrigin    string
	productPageURL string
	pushHosts      []string
	sem            *semaphore.Weighted
	logger         *slog.Logger
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, bridge.Message) error { return nil }

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(session.Options{})
	}
	pub := opts.Bridge
	if pub == nil {
		pub = nopPublisher{}
	}
	colors := opts.Colors
	if len(colors) == 0 {
		colors = []string{"White", "Black"}
	}
	table := opts.ColorTable
	if table == nil {
		table = cart.DefaultColorTable()
	}
	mode := opts.CartMode
	if mode == "" {
		mode = CartRedirect
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}

	return &Service{
		sessions:       sessions,
		pipeline:       opts.Pipeline,
		renderer:       opts.Renderer,
		bridge:         pub,
		cart:           opts.Cart,
		assets:         opts.Assets,
		colors:         colors,
		resolver:       cart.Resolver{Colors: table},
		cartMode:       mode,
		storeOrigin:    strings.TrimRight(opts.StoreOrigin, "/"),
		productPageURL: opts.ProductPageURL,
		pushHosts:      normalizeHosts(opts.PushHosts),
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
		logger:         logger,
	}
}

// View is the client-facing state of one session.
type View struct {
	SessionID  string            `json:"sessionId"`
	Selection  session.Selection `json:"selection"`
	Anchor     design.Anchor     `json:"anchor"`
	Dragging   bool              `json:"dragging"`
	State      generation.State  `json:"state"`
	Error      string            `json:"error,omitempty"`
	OverlayURL string            `json:"overlayUrl,omitempty"`
	Designs    []design.Design   `json:"designs"`
	Colors     []string          `json:"colors"`
	Sizes      []string          `json:"sizes"`
	CartMode   CartMode          `json:"cartMode"`
}

func (s *Service) view(sess session.Session) View {
	v := View{
		SessionID:  sess.ID,
		Selection:  sess.Selection,
		Anchor:     sess.Mockup.Anchor,
		Dragging:   sess.Mockup.Dragging,
		State:      sess.Tracker.State(),
		OverlayURL: overlayURL(&sess),
		Designs:    sess.Gallery.List(),
		Colors:     append([]string(nil), s.colors...),
		Sizes:      sizesFor(sess.Catalog),
		CartMode:   s.cartMode,
	}
	if v.State == generation.StateFailed {
		v.Error = UserMessage(sess.Tracker.LastError())
	}
	return v
}

func overlayURL(sess *session.Session) string {
	if sess.Selection.PushedImageURL != "" {
		return sess.Selection.PushedImageURL
	}
	if d, ok := sess.ActiveDesign(); ok {
		return d.ImageURL
	}
	return ""
}

func sizesFor(catalog cart.Catalog) []string {
	if sizes := catalog.Sizes(); len(sizes) > 0 {
		return sizes
	}
	return append([]string(nil), defaultSizes...)
}

func (s *Service) NewSession() View {
	sess := s.sessions.Create()
	s.logger.Info("session created", "session_id", sess.ID)
	return s.view(sess)
}

// Ensure returns the session with a caller-chosen id, creating it if needed.
func (s *Service) Ensure(id string) View {
	return s.view(s.sessions.Ensure(id))
}

// Reset starts the session over with the default selection and an empty
// gallery.
func (s *Service) Reset(id string) (View, error) {
	sess, err := s.sessions.Reset(id)
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

func (s *Service) Snapshot(id string) (View, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

func (s *Service) update(id string, fn func(*session.Session) error) (View, error) {
	sess, err := s.sessions.Update(id, fn)
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// SelectColor changes the garment color and tells the host about it.
func (s *Service) SelectColor(id, color string) (View, error) {
	color = strings.TrimSpace(color)
	if !containsFold(s.colors, &color) {
		return View{}, fmt.Errorf("%w: %q", ErrUnknownColor, color)
	}

	v, err := s.update(id, func(sess *session.Session) error {
		sess.Selection.Color = color
		return nil
	})
	if err != nil {
		return View{}, err
	}

	s.publish(id, bridge.VariantChange(color))
	return v, nil
}

func (s *Service) SelectSize(id, size string) (View, error) {
	size = strings.TrimSpace(size)
	return s.update(id, func(sess *session.Session) error {
		if !containsFold(sizesFor(sess.Catalog), &size) {
			return fmt.Errorf("%w: %q", ErrUnknownSize, size)
		}
		sess.Selection.Size = size
		return nil
	})
}

// SelectPlacement moves the overlay to the placement's default anchor.
func (s *Service) SelectPlacement(id, value string) (View, error) {
	p, err := design.ParsePlacement(value)
	if err != nil {
		return View{}, err
	}
	return s.update(id, func(sess *session.Session) error {
		sess.Selection.Placement = p
		sess.Mockup.Reset(p)
		return nil
	})
}

func (s *Service) SelectBlend(id, value string) (View, error) {
	b, err := design.ParseBlend(value)
	if err != nil {
		return View{}, err
	}
	return s.update(id, func(sess *session.Session) error {
		sess.Selection.Blend = b
		return nil
	})
}

// Generate runs the two-stage pipeline for in and makes the result the
// active design. No upstream call is made unless a subject and a size are
// set.
func (s *Service) Generate(ctx context.Context, id string, in prompt.Input) (design.Design, error) {
	raw, err := prompt.Build(in)
	if err != nil {
		return design.Design{}, ErrSubjectRequired
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		return design.Design{}, err
	}
	if sess.Selection.Size == "" {
		return design.Design{}, ErrSizeRequired
	}
	if sess.Tracker.Busy() {
		return design.Design{}, generation.ErrInFlight
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return design.Design{}, err
	}
	defer s.sem.Release(1)

	logger := s.logger.With("session_id", id)
	logger.Info("generation started", "subject", truncate(in.Subject, 80), "style", in.Style, "mood", in.Mood, "tags", len(in.Tags))
	start := time.Now()

	res, err := s.pipeline.Run(ctx, sess.Tracker, raw)
	if err != nil {
		logger.Warn("generation failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
		return design.Design{}, err
	}
	if strings.HasPrefix(res.ImageURL, "data:") && s.assets != nil {
		hosted, err := s.assets.Host(res.ImageURL)
		if err != nil {
			logger.Warn("hosting generated image failed", "err", err)
			return design.Design{}, fmt.Errorf("host generated image: %w", err)
		}
		res.ImageURL = hosted
	}

	var created design.Design
	_, err = s.sessions.Update(id, func(sess *session.Session) error {
		created = design.Design{
			ID:        uuid.NewString(),
			ImageURL:  res.ImageURL,
			Prompt:    res.Prompt,
			Placement: sess.Selection.Placement,
			Blend:     sess.Selection.Blend,
			CreatedAt: time.Now().UTC(),
		}
		sess.Gallery.Add(created)
		sess.Selection.ActiveDesignID = created.ID
		sess.Selection.PushedImageURL = ""
		sess.Mockup.Reset(sess.Selection.Placement)
		return nil
	})
	if err != nil {
		return design.Design{}, err
	}

	logger.Info("generation finished", "design_id", created.ID, "refined", res.Refined, "duration_ms", time.Since(start).Milliseconds())
	s.publish(id, bridge.DesignGenerated())
	return created, nil
}

func (s *Service) SelectDesign(id, designID string) (View, error) {
	return s.update(id, func(sess *session.Session) error {
		if _, ok := sess.Gallery.Get(designID); !ok {
			return ErrDesignNotFound
		}
		sess.Selection.ActiveDesignID = designID
		sess.Selection.PushedImageURL = ""
		sess.Mockup.Reset(sess.Selection.Placement)
		return nil
	})
}

// DeleteDesign removes one gallery entry. Deleting the active design makes
// the newest remaining design active.
func (s *Service) DeleteDesign(id, designID string) (View, error) {
	return s.update(id, func(sess *session.Session) error {
		if !sess.Gallery.Remove(designID) {
			return ErrDesignNotFound
		}
		if sess.Selection.ActiveDesignID != designID {
			return nil
		}
		sess.Selection.ActiveDesignID = ""
		if latest, ok := sess.Gallery.Latest(); ok {
			sess.Selection.ActiveDesignID = latest.ID
		}
		sess.Mockup.Reset(sess.Selection.Placement)
		return nil
	})
}

type DragKind string

const (
	DragDown  DragKind = "down"
	DragMove  DragKind = "move"
	DragUp    DragKind = "up"
	DragLeave DragKind = "leave"
)

// DragEvent is a pointer event in the shopper's viewport, in pixels
// relative to the mockup box.
type DragEvent struct {
	Kind DragKind   `json:"kind"`
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
	Box  mockup.Box `json:"box"`
}

func (s *Service) Drag(id string, ev DragEvent) (View, error) {
	return s.update(id, func(sess *session.Session) error {
		switch ev.Kind {
		case DragDown:
			if overlayURL(sess) != "" {
				sess.Mockup.Down(ev.Box, overlayAspect, ev.X, ev.Y)
			}
		case DragMove:
			sess.Mockup.Move(ev.X, ev.Y)
		case DragUp, DragLeave:
			sess.Mockup.End()
		default:
			return fmt.Errorf("%w: %q", ErrUnknownDrag, ev.Kind)
		}
		return nil
	})
}

// RenderMockup draws the current selection as a PNG.
func (s *Service) RenderMockup(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, mockup.Scene{
		Color:      sess.Selection.Color,
		OverlayURL: overlayURL(&sess),
		Anchor:     sess.Mockup.Anchor,
		Blend:      sess.Selection.Blend,
	})
}

// CartResult tells the caller how the add-to-cart was handed off.
type CartResult struct {
	Mode CartMode `json:"mode"`
	// RedirectURL is where the shopper should navigate next. Empty in
	// delegate mode, where the host page takes over.
	RedirectURL string       `json:"redirectUrl,omitempty"`
	Request     cart.Request `json:"request"`
}

// AddToCart hands the active design and selected variant to the host cart.
func (s *Service) AddToCart(ctx context.Context, id string) (CartResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return CartResult{}, err
	}
	if sess.Selection.Size == "" {
		return CartResult{}, ErrSizeRequired
	}
	active, ok := sess.ActiveDesign()
	if !ok {
		return CartResult{}, ErrNoDesign
	}

	if strings.HasPrefix(active.ImageURL, "data:") {
		return CartResult{}, ErrDesignNotHosted
	}

	variantID, err := s.resolveVariant(ctx, &sess)
	if err != nil {
		return CartResult{}, err
	}

	req := cart.BuildRequest(variantID, active, sess.Selection.Placement)
	res := CartResult{Mode: s.cartMode, Request: req}
	logger := s.logger.With("session_id", id, "variant_id", variantID, "mode", string(s.cartMode))

	switch s.cartMode {
	case CartDelegate:
		if err := s.bridge.Publish(id, bridge.AddToCart(bridge.CartPayload{
			VariantID: variantID,
			ImageURL:  active.ImageURL,
			Placement: sess.Selection.Placement.Label(),
			Prompt:    active.Prompt,
			Scale:     mockup.OverlayWidthRatio * 100,
		})); err != nil {
			logger.Warn("cart delegation failed", "err", err)
			return CartResult{}, err
		}
	default:
		res.RedirectURL = cart.RedirectURL(s.storeOrigin, req)
	}

	logger.Info("cart handoff", "design_id", active.ID)
	return res, nil
}

func (s *Service) resolveVariant(ctx context.Context, sess *session.Session) (string, error) {
	if id, ok := s.resolver.Resolve(sess.Catalog, sess.Selection.Color, sess.Selection.Size); ok {
		return id, nil
	}
	if len(sess.Catalog) > 0 {
		return "", ErrVariantNotFound
	}

	if s.cartMode != CartDelegate {
		return "", ErrVariantNotFound
	}
	if s.productPageURL != "" && s.cart != nil {
		id, err := s.cart.ProductVariantID(ctx, s.productPageURL)
		if err == nil {
			return id, nil
		}
		s.logger.Warn("product form discovery failed", "url", s.productPageURL, "err", err)
	}
	// the host falls back to the variant selected on its own page
	return "", nil
}

// HandleBridge applies a validated inbound message from the host.
func (s *Service) HandleBridge(_ context.Context, id string, msg bridge.Message) {
	var err error
	switch msg.Type {
	case bridge.TypeVariants:
		_, err = s.sessions.Update(id, func(sess *session.Session) error {
			sess.Catalog = append(cart.Catalog(nil), msg.Variants...)
			return nil
		})
		s.logger.Info("variant catalog replaced", "session_id", id, "variants", len(msg.Variants))
	case bridge.TypeDesignGenerated:
		if !s.pushAllowed(msg.ImageURL) {
			s.logger.Warn("pushed design refused", "session_id", id, "url", truncate(msg.ImageURL, 120))
			return
		}
		_, err = s.sessions.Update(id, func(sess *session.Session) error {
			sess.Selection.PushedImageURL = msg.ImageURL
			sess.Mockup.Reset(sess.Selection.Placement)
			return nil
		})
	default:
		s.logger.Debug("bridge message ignored", "session_id", id, "type", msg.Type)
	}
	if err != nil {
		s.logger.Debug("bridge message dropped", "session_id", id, "type", msg.Type, "err", err)
	}
}

func (s *Service) publish(id string, msg bridge.Message) {
	if err := s.bridge.Publish(id, msg); err != nil {
		s.logger.Warn("bridge publish failed", "session_id", id, "type", msg.Type, "err", err)
	}
}

// pushAllowed reports whether a host-pushed image may be drawn. The renderer
// downloads http(s) overlays, so only listed image hosts are accepted.
func (s *Service) pushAllowed(raw string) bool {
	if strings.HasPrefix(raw, "data:image/") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.User != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range s.pushHosts {
		if suffix, ok := strings.CutPrefix(allowed, "*"); ok {
			if strings.HasSuffix(host, suffix) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || (strings.HasPrefix(h, "*") && !strings.HasPrefix(h, "*.")) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// containsFold reports whether list holds *value ignoring case and rewrites
// *value to the listed spelling.
func containsFold(list []string, value *string) bool {
	for _, item := range list {
		if strings.EqualFold(item, *value) {
			*value = item
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
