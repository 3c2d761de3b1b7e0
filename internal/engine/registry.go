package engine

import (
	"sort"
	"strings"
)

// Format describes a document format the engine can emit.
type Format struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
	MediaType string `json:"media_type"`
	Family    string `json:"family"`
}

// Registry maps lowercase extensions to format metadata. It is immutable
// after construction and safe for concurrent reads.
type Registry struct {
	byExt map[string]Format
	all   []Format
}

// NewRegistry builds a registry. Later entries for the same extension win.
func NewRegistry(formats []Format) *Registry {
	byExt := make(map[string]Format, len(formats))
	for _, f := range formats {
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f.Extension), "."))
		if ext == "" {
			continue
		}
		f.Extension = ext
		byExt[ext] = f
	}
	all := make([]Format, 0, len(byExt))
	for _, f := range byExt {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Family != all[j].Family {
			return all[i].Family < all[j].Family
		}
		return all[i].Extension < all[j].Extension
	})
	return &Registry{byExt: byExt, all: all}
}

// Lookup returns the format registered for ext. The lookup is case-insensitive
// and tolerates a leading dot.
func (r *Registry) Lookup(ext string) (Format, bool) {
	if r == nil {
		return Format{}, false
	}
	f, ok := r.byExt[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))]
	return f, ok
}

// Formats returns all registered formats ordered by family then extension.
func (r *Registry) Formats() []Format {
	if r == nil {
		return nil
	}
	out := make([]Format, len(r.all))
	copy(out, r.all)
	return out
}

// Len reports the number of registered formats.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.all)
}

const (
	FamilyText         = "text"
	FamilySpreadsheet  = "spreadsheet"
	FamilyPresentation = "presentation"
	FamilyDrawing      = "drawing"
)

// DefaultFormats is the output format table of a stock LibreOffice install.
func DefaultFormats() []Format {
	return []Format{
		{Name: "Portable Document Format", Extension: "pdf", MediaType: "application/pdf", Family: FamilyText},
		{Name: "Flash", Extension: "swf", MediaType: "application/x-shockwave-flash", Family: FamilyPresentation},
		{Name: "HTML", Extension: "html", MediaType: "text/html", Family: FamilyText},
		{Name: "OpenDocument Text", Extension: "odt", MediaType: "application/vnd.oasis.opendocument.text", Family: FamilyText},
		{Name: "OpenOffice.org 1.0 Text Document", Extension: "sxw", MediaType: "application/vnd.sun.xml.writer", Family: FamilyText},
		{Name: "Microsoft Word", Extension: "doc", MediaType: "application/msword", Family: FamilyText},
		{Name: "Microsoft Word 2007-2013 XML", Extension: "docx", MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Family: FamilyText},
		{Name: "Rich Text Format", Extension: "rtf", MediaType: "text/rtf", Family: FamilyText},
		{Name: "WordPerfect", Extension: "wpd", MediaType: "application/wordperfect", Family: FamilyText},
		{Name: "Plain Text", Extension: "txt", MediaType: "text/plain", Family: FamilyText},
		{Name: "MediaWiki wikitext", Extension: "wiki", MediaType: "text/x-wiki", Family: FamilyText},
		{Name: "EPUB", Extension: "epub", MediaType: "application/epub+zip", Family: FamilyText},
		{Name: "OpenDocument Spreadsheet", Extension: "ods", MediaType: "application/vnd.oasis.opendocument.spreadsheet", Family: FamilySpreadsheet},
		{Name: "OpenOffice.org 1.0 Spreadsheet", Extension: "sxc", MediaType: "application/vnd.sun.xml.calc", Family: FamilySpreadsheet},
		{Name: "Microsoft Excel", Extension: "xls", MediaType: "application/vnd.ms-excel", Family: FamilySpreadsheet},
		{Name: "Microsoft Excel 2007-2013 XML", Extension: "xlsx", MediaType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Family: FamilySpreadsheet},
		{Name: "Comma Separated Values", Extension: "csv", MediaType: "text/csv", Family: FamilySpreadsheet},
		{Name: "Tab Separated Values", Extension: "tsv", MediaType: "text/tab-separated-values", Family: FamilySpreadsheet},
		{Name: "OpenDocument Presentation", Extension: "odp", MediaType: "application/vnd.oasis.opendocument.presentation", Family: FamilyPresentation},
		{Name: "OpenOffice.org 1.0 Presentation", Extension: "sxi", MediaType: "application/vnd.sun.xml.impress", Family: FamilyPresentation},
		{Name: "Microsoft PowerPoint", Extension: "ppt", MediaType: "application/vnd.ms-powerpoint", Family: FamilyPresentation},
		{Name: "Microsoft PowerPoint 2007-2013 XML", Extension: "pptx", MediaType: "application/vnd.openxmlformats-officedocument.presentationml.presentation", Family: FamilyPresentation},
		{Name: "OpenDocument Drawing", Extension: "odg", MediaType: "application/vnd.oasis.opendocument.graphics", Family: FamilyDrawing},
		{Name: "Scalable Vector Graphics", Extension: "svg", MediaType: "image/svg+xml", Family: FamilyDrawing},
		{Name: "Portable Network Graphics", Extension: "png", MediaType: "image/png", Family: FamilyDrawing},
		{Name: "JPEG", Extension: "jpg", MediaType: "image/jpeg", Family: FamilyDrawing},
		{Name: "GIF", Extension: "gif", MediaType: "image/gif", Family: FamilyDrawing},
	}
}
