// SPDX-License-Identifier: MPL-2.0

package loaders

import (
	"context"
	"iter"
	"strings"

	"github.com/invowk/contentpipe/internal/content"
)

// ScriptLoader keeps script text verbatim.
type ScriptLoader struct{}

// Name implements Loader.
func (ScriptLoader) Name() string { return "script" }

// Extensions implements Loader.
func (ScriptLoader) Extensions() []string { return []string{".lua"} }

// Load implements Loader.
func (ScriptLoader) Load(ctx context.Context, req Request) iter.Seq[content.Result] {
	return func(yield func(content.Result) bool) {
		data, err := readEntry(ctx, req)
		if err != nil {
			yield(content.Failed(req.Entry, err))
			return
		}
		lang := strings.TrimPrefix(req.Entry.Ext(), ".")
		item := content.NewItem(content.ID(req.Entry.Path), req.Entry.SourceName(), &content.Script{Lang: lang, Text: string(data)})
		yield(content.Succeeded(item))
	}
}
