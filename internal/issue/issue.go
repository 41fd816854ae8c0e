// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	SourceNotFoundId
	ManifestInvalidId
	MissingDependencyId
	DependencyCycleId
	DuplicateSourceId
	UnknownExtensionId
	EntriesFailedId
	GPUInitFailedId
	BucketUnavailableId
	WatchFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	name     string      // stable slug accepted by "contentpipe explain"
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Name() string {
	return i.name
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue markdown with glamour. stylePath is a glamour
// style name ("dark", "light", "notty") or a path to a style file.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		name: "config-load-failed",
		mdMsg: `
# Configuration could not be loaded

The configuration file exists but could not be read or does not match the
expected schema.

## Things you can try:
- Check the file for CUE syntax errors
- Compare it with the defaults:
~~~
$ contentpipe config show
~~~
- Remove unknown keys; the schema is closed`,
	}

	sourceNotFoundIssue = &Issue{
		id:   SourceNotFoundId,
		name: "source-not-found",
		mdMsg: `
# No content sources found

A content source is a directory, a ` + "`.zip`" + ` or ` + "`.kar`" + ` archive, or a bucket
prefix with a ` + "`meta.json`" + ` (or ` + "`meta.toml`" + `) manifest at its root.

## Things you can try:
- Pass the directories that contain your sources:
~~~
$ contentpipe load ./content
~~~
- Or set ` + "`roots`" + ` in your configuration file`,
	}

	manifestInvalidIssue = &Issue{
		id:   ManifestInvalidId,
		name: "manifest-invalid",
		mdMsg: `
# Invalid source manifest

Every source manifest needs a non-empty ` + "`name`" + `, a semver-like ` + "`version`" + `
and, optionally, a list of ` + "`dependencies`" + ` naming other sources.

## Example meta.json:
~~~json
{"name": "mod_a", "version": "1.0.0", "dependencies": ["base"]}
~~~

## Things you can try:
- Run the validator to see every problem at once:
~~~
$ contentpipe validate ./content
~~~`,
	}

	missingDependencyIssue = &Issue{
		id:   MissingDependencyId,
		name: "missing-dependency",
		mdMsg: `
# A source depends on a source that was not found

Nothing is loaded when a dependency is missing, because the load order
cannot be decided.

## Things you can try:
- Add the missing source to one of the configured roots
- Fix the name in the dependent's manifest; names are case-sensitive
- List what was discovered:
~~~
$ contentpipe order ./content
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id:   DependencyCycleId,
		name: "dependency-cycle",
		mdMsg: `
# Dependency cycle between sources

Sources must form a directed acyclic graph. The error names the sources on
the cycle.

## Things you can try:
- Remove one of the dependencies on the cycle
- Move shared content into a new source that both depend on`,
	}

	duplicateSourceIssue = &Issue{
		id:   DuplicateSourceId,
		name: "duplicate-source",
		mdMsg: `
# Two sources share a name

Source names identify sources in dependencies and in qualified item
references, so they must be unique across all roots.

## Things you can try:
- Rename one of the sources in its manifest
- Remove the stale copy (for example an old archive next to the directory)`,
	}

	unknownExtensionIssue = &Issue{
		id:   UnknownExtensionId,
		name: "unknown-extension",
		mdMsg: `
# No loader for this extension

Each entry is handed to the loader registered for its extension. Shaders
must be ` + "`.vert`" + `, ` + "`.frag`" + ` or ` + "`.<stage>.wgsl`" + `.

## Things you can try:
- Rename the file, for example ` + "`ui.glsl`" + ` to ` + "`ui.frag`" + `
- Exclude it with an ` + "`exclude`" + ` pattern if it is not content`,
	}

	entriesFailedIssue = &Issue{
		id:   EntriesFailedId,
		name: "entries-failed",
		mdMsg: `
# Some entries failed to load

The load finished, and every other entry is available. Each failure is
listed with its source and path.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` for decoder details
- Fix the entries and let ` + "`contentpipe watch`" + ` reload them`,
	}

	gpuInitFailedIssue = &Issue{
		id:   GPUInitFailedId,
		name: "gpu-init-failed",
		mdMsg: `
# GPU resources could not be created

The item was decoded but creating its GPU objects failed, so it was
dropped.

## Things you can try:
- Check texture dimensions and shader sources
- Make sure programs reference shaders that loaded successfully`,
	}

	bucketUnavailableIssue = &Issue{
		id:   BucketUnavailableId,
		name: "bucket-unavailable",
		mdMsg: `
# Bucket sources could not be reached

An ` + "`s3://`" + ` root was configured but the object store did not answer.

## Things you can try:
- Check ` + "`bucket.endpoint`" + ` and credentials
- Set ` + "`bucket.use_ssl`" + ` to match the endpoint`,
		extLinks: []HttpLink{"https://min.io/docs/minio/linux/developers/go/minio-go.html"},
	}

	watchFailedIssue = &Issue{
		id:   WatchFailedId,
		name: "watch-failed",
		mdMsg: `
# File watching stopped

The filesystem watcher hit a resource limit. Polling continues at the
configured interval.

## Things you can try:
- Raise the inotify watch limit:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~
- Disable the watcher with ` + "`hot_reload.watch: false`",
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		sourceNotFoundIssue.Id():    sourceNotFoundIssue,
		manifestInvalidIssue.Id():   manifestInvalidIssue,
		missingDependencyIssue.Id(): missingDependencyIssue,
		dependencyCycleIssue.Id():   dependencyCycleIssue,
		duplicateSourceIssue.Id():   duplicateSourceIssue,
		unknownExtensionIssue.Id():  unknownExtensionIssue,
		entriesFailedIssue.Id():     entriesFailedIssue,
		gpuInitFailedIssue.Id():     gpuInitFailedIssue,
		bucketUnavailableIssue.Id(): bucketUnavailableIssue,
		watchFailedIssue.Id():       watchFailedIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := slices.Collect(maps.Values(issues))
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id - b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// Lookup finds an issue by its name.
func Lookup(name string) (*Issue, bool) {
	for _, i := range issues {
		if i.name == strings.ToLower(strings.TrimSpace(name)) {
			return i, true
		}
	}
	return nil, false
}

// Names returns every issue name ordered by id.
func Names() []string {
	var out []string
	for _, i := range Values() {
		out = append(out, i.name)
	}
	return out
}
