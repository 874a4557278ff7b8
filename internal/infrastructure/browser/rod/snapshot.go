package rod

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"browser-pilot/internal/domain/entity"
)

// snapshotScript walks the rendered DOM in document order and emits one
// record per visible element worth grounding against: interactive controls
// plus leaf text carriers. Locators are css paths resolvable later in the
// same page state.
const snapshotScript = `function() {
	const MAX_NODES = 600;

	function visible(el) {
		const rect = el.getBoundingClientRect();
		if (rect.width < 1 || rect.height < 1) return false;
		const style = window.getComputedStyle(el);
		return style.visibility !== 'hidden' && style.display !== 'none' && style.opacity !== '0';
	}

	function cssPath(el) {
		const parts = [];
		while (el && el.nodeType === Node.ELEMENT_NODE && el !== document.body) {
			let part = el.tagName.toLowerCase();
			if (el.id) {
				parts.unshift(part + '#' + CSS.escape(el.id));
				return parts.join(' > ');
			}
			const siblings = el.parentNode
				? Array.from(el.parentNode.children).filter(s => s.tagName === el.tagName)
				: [];
			if (siblings.length > 1) {
				part += ':nth-of-type(' + (siblings.indexOf(el) + 1) + ')';
			}
			parts.unshift(part);
			el = el.parentElement;
		}
		return 'body > ' + parts.join(' > ');
	}

	function accessibleName(el) {
		const aria = el.getAttribute('aria-label');
		if (aria) return aria;
		const labelledBy = el.getAttribute('aria-labelledby');
		if (labelledBy) {
			const ref = document.getElementById(labelledBy.split(' ')[0]);
			if (ref) return ref.innerText || '';
		}
		if (el.labels && el.labels.length > 0) return el.labels[0].innerText || '';
		return el.getAttribute('title') || el.getAttribute('alt') || '';
	}

	function clean(s) {
		return (s || '').replace(/\s+/g, ' ').trim().substring(0, 200);
	}

	const interactiveTags = new Set(['a', 'button', 'input', 'textarea', 'select', 'summary']);
	const interactiveRoles = new Set(['button', 'link', 'checkbox', 'radio', 'textbox', 'combobox', 'menuitem', 'tab', 'switch']);

	const nodes = [];
	const recorded = new Set();

	for (const el of document.body.querySelectorAll('*')) {
		if (nodes.length >= MAX_NODES) break;
		if (!visible(el)) continue;

		const tag = el.tagName.toLowerCase();
		if (tag === 'script' || tag === 'style' || tag === 'noscript') continue;
		const role = el.getAttribute('role') || '';
		const style = window.getComputedStyle(el);

		const interactive = interactiveTags.has(tag)
			|| interactiveRoles.has(role)
			|| el.isContentEditable
			|| (style.cursor === 'pointer' && ['div', 'span', 'li', 'img', 'svg'].includes(tag));

		if (interactive) {
			let p = el.parentElement, nested = false;
			while (p && p !== document.body) {
				if (recorded.has(p)) { nested = true; break; }
				p = p.parentElement;
			}
			if (nested) continue;
		}

		let text = '';
		if (interactive || el.children.length === 0) {
			text = clean(el.innerText);
		}
		if (!interactive && !text) continue;

		if (interactive) recorded.add(el);
		nodes.push({
			tag: tag,
			role: role,
			name: clean(accessibleName(el)),
			text: text,
			value: clean(typeof el.value === 'string' ? el.value : ''),
			placeholder: clean(el.getAttribute('placeholder')),
			locator: cssPath(el),
			interactive: !!interactive,
		});
	}
	return JSON.stringify(nodes);
}`

// Snapshot extracts the raw node dump the indexer builds trees from.
func (a *Adapter) Snapshot(ctx context.Context) ([]entity.RawNode, entity.PageInfo, error) {
	page := a.page.Context(ctx).Timeout(a.cfg.Timeout)

	result, err := page.Eval(snapshotScript)
	if err != nil {
		return nil, entity.PageInfo{}, fmt.Errorf("evaluating snapshot script: %w", err)
	}

	var nodes []entity.RawNode
	if err := json.Unmarshal([]byte(result.Value.Str()), &nodes); err != nil {
		return nil, entity.PageInfo{}, fmt.Errorf("decoding snapshot: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return nil, entity.PageInfo{}, fmt.Errorf("reading page info: %w", err)
	}
	return nodes, entity.PageInfo{URL: info.URL, Title: info.Title}, nil
}

// PageText returns the page's visible text for full-DOM grounding context.
func (a *Adapter) PageText(ctx context.Context) (string, error) {
	page := a.page.Context(ctx).Timeout(a.cfg.Timeout)
	raw, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("reading page html: %w", err)
	}
	return textFromHTML(raw)
}

const maxPageTextLen = 20000

// textFromHTML flattens markup into whitespace-normalized text, skipping
// non-content subtrees.
func textFromHTML(raw string) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.Join(strings.Fields(sb.String()), " ")
	if len(text) > maxPageTextLen {
		cut := maxPageTextLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text, nil
}
