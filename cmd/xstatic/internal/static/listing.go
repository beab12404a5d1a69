package static

import (
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"sort"
	"strings"
)

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE HTML>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Directory listing for {{.Path}}</title>
</head>
<body>
<h1>Directory listing for {{.Path}}</h1>
<hr>
<ul>
{{- range .Entries}}
<li><a href="{{.Href}}">{{.Name}}</a></li>
{{- end}}
</ul>
<hr>
</body>
</html>
`))

type listingEntry struct {
	Name string
	Href template.URL
}

type listing struct {
	Path    string
	Entries []listingEntry
}

// writeListing renders the immediate entries of a directory. Directories
// get a trailing "/" and symlinks a trailing "@" in their display name.
func writeListing(w io.Writer, urlPath string, entries []fs.DirEntry) error {
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	l := listing{Path: urlPath, Entries: make([]listingEntry, 0, len(entries))}
	for _, e := range entries {
		name := e.Name()
		display, link := name, name
		switch {
		case e.IsDir():
			display += "/"
			link += "/"
		case e.Type()&fs.ModeSymlink != 0:
			display += "@"
		}
		// The "./" prefix keeps names containing ':' from parsing as a scheme.
		href := (&url.URL{Path: "./" + link}).String()
		l.Entries = append(l.Entries, listingEntry{Name: display, Href: template.URL(href)})
	}

	return listingTemplate.Execute(w, l)
}
