package output

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

// BrowserPort is the browser-control collaborator. Implementations own the
// session; callers never touch live handles directly — they pass structural
// locators back in.
type BrowserPort interface {
	Navigate(ctx context.Context, url string) error
	// WaitStable blocks until the page has settled enough to snapshot.
	WaitStable(ctx context.Context) error

	// Snapshot evaluates the snapshot-extraction routine in page context
	// and returns raw nodes in document order.
	Snapshot(ctx context.Context) ([]entity.RawNode, entity.PageInfo, error)
	// PageText returns readable page text for full-DOM grounding context.
	PageText(ctx context.Context) (string, error)

	// Perform resolves a structural locator to a live handle and dispatches
	// one interaction against it.
	Perform(ctx context.Context, locator string, method entity.InteractionMethod, args []string) error

	Screenshot(ctx context.Context) (*entity.Screenshot, error)
	CurrentURL() string
	Close()
}
