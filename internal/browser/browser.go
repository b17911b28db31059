// Package browser drives the course portal in a headless Chrome instance.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/abhisek/coursewalk/internal/page"
)

// Selectors locate the portal's DOM elements. LectureTab is an XPath
// expression; the others are CSS selectors.
type Selectors struct {
	SubjectName   string `yaml:"subject_name"`
	SubjectButton string `yaml:"subject_button"`
	LectureTab    string `yaml:"lecture_tab"`
	CourseList    string `yaml:"course_list"`
	CourseLink    string `yaml:"course_link"`
	Video         string `yaml:"video"`
	BackButton    string `yaml:"back_button"`
}

// DefaultSelectors returns the selectors of the production portal.
func DefaultSelectors() Selectors {
	return Selectors{
		SubjectName:   "div.course-name",
		SubjectButton: "a.btn.course-btn",
		LectureTab:    "//span[text()='课程讲授']",
		CourseList:    "ul.level-root",
		CourseLink:    "a[id*='courseware-kcjs_']",
		Video:         "#vjs_video_3_html5_api",
		BackButton:    "span.glyphicon.glyphicon-menu-left",
	}
}

// Options configures a Browser.
type Options struct {
	BaseURL     string
	AccessToken string
	Headless    bool
	// ChromePath overrides the Chrome executable lookup.
	ChromePath string
	// ActionTimeout bounds every single page action.
	ActionTimeout time.Duration
	Selectors     Selectors
	Logger        *slog.Logger
}

// Browser implements page.Page on top of chromedp.
type Browser struct {
	opts   Options
	host   string
	logger *slog.Logger

	ctx         context.Context // tab context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

var _ page.Page = (*Browser)(nil)

// New launches Chrome and establishes an authenticated session.
func New(ctx context.Context, opts Options) (*Browser, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			opts.Logger.Debug("chromedp", slog.String("detail", fmt.Sprintf(format, args...)))
		}),
	)

	b := &Browser{
		opts:        opts,
		host:        u.Hostname(),
		logger:      opts.Logger,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	// The first Run starts the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	if err := b.ReestablishSession(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("establish session: %w", err)
	}
	return b, nil
}

// run executes actions on the tab under the per-action timeout. Cancelling
// ctx aborts the actions without closing the tab.
func (b *Browser) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	actx, cancel := context.WithTimeout(b.ctx, b.opts.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(actx, actions...)
	if err == nil {
		return nil
	}
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case b.ctx.Err() != nil:
		return fmt.Errorf("%s: browser is gone: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return page.NewFault(page.KindTimeout, op, err)
	default:
		return page.NewFault(page.KindNavigation, op, err)
	}
}

// ReestablishSession loads the portal and installs the auth cookies.
func (b *Browser) ReestablishSession(ctx context.Context) error {
	cookies := []*network.CookieParam{
		{Name: "__environment", Value: "production", Domain: b.host, Path: "/", Secure: true},
		{Name: "AccessToken", Value: b.opts.AccessToken, Domain: b.host, Path: "/", Secure: true, HTTPOnly: true},
	}
	err := b.run(ctx, "reestablish session",
		chromedp.Navigate(b.opts.BaseURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		network.SetCookies(cookies),
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return err
	}
	b.logger.Debug("session established", slog.String("host", b.host))
	return nil
}

func (b *Browser) ListSubjects(ctx context.Context) ([]string, error) {
	sel := b.opts.Selectors.SubjectName
	var names []string
	err := b.run(ctx, "list subjects",
		chromedp.Navigate(b.opts.BaseURL),
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(
			`Array.from(document.querySelectorAll(%s)).map(e => e.textContent.trim())`, jsString(sel),
		), &names),
	)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// OpenSubject clicks the index-th subject button on the portal home page and
// switches to the lecture tab.
func (b *Browser) OpenSubject(ctx context.Context, index int) error {
	s := b.opts.Selectors
	var buttons []*cdp.Node
	err := b.run(ctx, "open subject",
		chromedp.Navigate(b.opts.BaseURL),
		chromedp.Nodes(s.SubjectButton, &buttons, chromedp.ByQueryAll),
	)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(buttons) {
		return page.NewFault(page.KindNotFound, "open subject",
			fmt.Errorf("no subject button at index %d of %d", index, len(buttons)))
	}
	return b.run(ctx, "open subject",
		chromedp.MouseClickNode(buttons[index]),
		chromedp.Click(s.LectureTab, chromedp.BySearch),
		chromedp.WaitVisible(s.CourseList, chromedp.ByQuery),
	)
}

func (b *Browser) ListCourses(ctx context.Context) ([]string, error) {
	s := b.opts.Selectors
	var ids []string
	err := b.run(ctx, "list courses",
		chromedp.WaitVisible(s.CourseList, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(
			`Array.from(document.querySelectorAll(%s)).flatMap(ul => Array.from(ul.querySelectorAll(%s)).map(a => a.id))`,
			jsString(s.CourseList), jsString(s.CourseLink),
		), &ids),
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (b *Browser) OpenCourse(ctx context.Context, courseID string) error {
	return b.run(ctx, "open course "+courseID,
		chromedp.Click(courseID, chromedp.ByID),
	)
}

// StartPlayback waits for the video element and forces it to play muted.
func (b *Browser) StartPlayback(ctx context.Context) (page.Video, error) {
	sel := b.opts.Selectors.Video
	var ok bool
	err := b.run(ctx, "start playback",
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(
			`(() => { const v = document.querySelector(%s); if (!v) return false; v.muted = true; v.play(); return true; })()`,
			jsString(sel),
		), &ok),
	)
	if err != nil {
		return page.Video{}, err
	}
	if !ok {
		return page.Video{}, page.NewFault(page.KindStale, "start playback", errors.New("video element vanished"))
	}
	return page.Video{Ref: sel}, nil
}

func (b *Browser) ReadElapsed(ctx context.Context, v page.Video) (float64, error) {
	return b.readClock(ctx, v, "read elapsed",
		`(() => { const v = document.querySelector(%s); return v ? v.currentTime : -1; })()`)
}

// ReadDuration reports 0 while the metadata is still loading.
func (b *Browser) ReadDuration(ctx context.Context, v page.Video) (float64, error) {
	return b.readClock(ctx, v, "read duration",
		`(() => { const v = document.querySelector(%s); if (!v) return -1; return Number.isFinite(v.duration) ? v.duration : 0; })()`)
}

// readClock evaluates script, which yields -1 when the element is gone.
func (b *Browser) readClock(ctx context.Context, v page.Video, op, script string) (float64, error) {
	var secs float64
	if err := b.run(ctx, op, chromedp.Evaluate(fmt.Sprintf(script, jsString(v.Ref)), &secs)); err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, page.NewFault(page.KindStale, op, fmt.Errorf("video %s is gone", v.Ref))
	}
	return secs, nil
}

// NavigateBack leaves the course page and reopens the lecture tab.
func (b *Browser) NavigateBack(ctx context.Context) error {
	s := b.opts.Selectors
	return b.run(ctx, "navigate back",
		chromedp.Click(s.BackButton, chromedp.ByQuery),
		chromedp.Click(s.LectureTab, chromedp.BySearch),
		chromedp.WaitVisible(s.CourseList, chromedp.ByQuery),
	)
}

// Close shuts the browser down. It is safe to call more than once.
func (b *Browser) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}
