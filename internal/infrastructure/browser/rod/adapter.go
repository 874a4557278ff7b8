// Package rod drives a Chromium page through go-rod and implements the
// browser port: navigation, snapshot extraction, locator-based input
// dispatch and screenshots.
package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

var _ output.BrowserPort = (*Adapter)(nil)

type Config struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	// MaxScreenshotWidth bounds captures before they go into prompts.
	MaxScreenshotWidth int
}

func DefaultConfig() Config {
	return Config{
		Headless:           true,
		SlowMotion:         100 * time.Millisecond,
		Timeout:            10 * time.Second,
		NoSandbox:          true,
		MaxScreenshotWidth: 1024,
	}
}

type Adapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	cfg      Config
}

func New(ctx context.Context, cfg Config) (*Adapter, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("disable-setuid-sandbox")

	url, err := l.Launch()
	if err != nil {
		return nil, &entity.SessionError{Op: "launch", Err: err}
	}

	browser := rod.New().
		ControlURL(url).
		SlowMotion(cfg.SlowMotion).
		Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, &entity.SessionError{Op: "connect", Err: err}
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, &entity.SessionError{Op: "open-page", Err: err}
	}

	return &Adapter{
		browser:  browser,
		launcher: l,
		page:     page,
		cfg:      cfg,
	}, nil
}

func (a *Adapter) Navigate(ctx context.Context, url string) error {
	page := a.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return &entity.SessionError{Op: "navigate", Page: entity.PageRef{URL: url}, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return &entity.SessionError{Op: "wait-load", Page: entity.PageRef{URL: url}, Err: err}
	}
	_ = page.WaitIdle(5 * time.Second)
	return nil
}

// WaitStable blocks until the page has loaded and network activity has
// settled, so the next snapshot is not taken mid-render.
func (a *Adapter) WaitStable(ctx context.Context) error {
	page := a.page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for load: %w", err)
	}
	_ = page.WaitIdle(3 * time.Second)
	return nil
}

// Perform dispatches one interaction against the element the locator
// resolves to. The locator comes from the snapshot of the same page state.
func (a *Adapter) Perform(ctx context.Context, locator string, method entity.InteractionMethod, args []string) error {
	page := a.page.Context(ctx).Timeout(a.cfg.Timeout)
	el, err := resolveLocator(page, locator)
	if err != nil {
		return fmt.Errorf("resolving locator %q: %w", locator, err)
	}

	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch method {
	case entity.MethodClick:
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("click: %w", err)
		}
		_ = page.WaitIdle(2 * time.Second)

	case entity.MethodHover:
		if err := el.Hover(); err != nil {
			return fmt.Errorf("hover: %w", err)
		}

	case entity.MethodFill:
		if err := clearInput(el); err != nil {
			return err
		}
		if err := el.Input(arg(0)); err != nil {
			return fmt.Errorf("fill: %w", err)
		}

	case entity.MethodType:
		if err := el.Input(arg(0)); err != nil {
			return fmt.Errorf("type: %w", err)
		}

	case entity.MethodClear:
		return clearInput(el)

	case entity.MethodSelect:
		if err := el.Select([]string{arg(0)}, true, rod.SelectorTypeText); err != nil {
			return fmt.Errorf("select %q: %w", arg(0), err)
		}

	case entity.MethodCheck, entity.MethodUncheck:
		return a.setChecked(page, el, method == entity.MethodCheck)

	case entity.MethodScroll:
		if err := el.ScrollIntoView(); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}

	case entity.MethodPress:
		key, err := keyByName(arg(0))
		if err != nil {
			return err
		}
		if err := el.Type(key); err != nil {
			return fmt.Errorf("press %q: %w", arg(0), err)
		}
		_ = page.WaitIdle(2 * time.Second)

	default:
		return fmt.Errorf("method %q is not dispatchable", method)
	}
	return nil
}

func (a *Adapter) setChecked(page *rod.Page, el *rod.Element, want bool) error {
	checked, err := el.Property("checked")
	if err != nil {
		return fmt.Errorf("reading checked state: %w", err)
	}
	if checked.Bool() == want {
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("toggling checkbox: %w", err)
	}
	return nil
}

func (a *Adapter) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	raw, err := a.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, &entity.SessionError{Op: "screenshot", Err: err}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	if max := a.cfg.MaxScreenshotWidth; max > 0 && img.Bounds().Dx() > max {
		img = imaging.Resize(img, max, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("encoding screenshot: %w", err)
	}
	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (a *Adapter) CurrentURL() string {
	info, err := a.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (a *Adapter) Close() {
	if a.browser != nil {
		_ = a.browser.Close()
	}
	if a.launcher != nil {
		a.launcher.Kill()
		a.launcher.Cleanup()
	}
}

func clearInput(el *rod.Element) error {
	if err := el.SelectAllText(); err == nil {
		if err := el.Input(""); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	return nil
}

// resolveLocator accepts the css paths produced by the snapshot script and
// xpath expressions for externally supplied locators.
func resolveLocator(page *rod.Page, locator string) (*rod.Element, error) {
	if strings.HasPrefix(locator, "/") || strings.HasPrefix(locator, "(") {
		return page.ElementX(locator)
	}
	return page.Element(locator)
}

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"space":      input.Space,
}

func keyByName(name string) (input.Key, error) {
	if key, ok := namedKeys[strings.ToLower(strings.TrimSpace(name))]; ok {
		return key, nil
	}
	if len(name) == 1 {
		return input.Key(name[0]), nil
	}
	return 0, fmt.Errorf("key %q is not pressable", name)
}
