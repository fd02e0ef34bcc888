// Package format holds the declarative conversion matrix: the registry of
// known file formats and the policy rules deciding which conversions between
// them are admissible. Everything in this package is pure data and pure
// functions; it carries no I/O and is safe to share across goroutines.
package format

import (
	"sort"
	"strings"
)

// Category is the coarse content type used as the primary compatibility gate.
type Category string

const (
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryImage    Category = "image"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
	CategoryVector   Category = "vector"
	CategoryEbook    Category = "ebook"
)

// Tier ranks a format's information fidelity. Lower values are closer to an
// original/master source; higher values are progressively more flattened.
type Tier int

const (
	TierContainer Tier = 0
	TierSource    Tier = 1
	TierEditable  Tier = 2
	TierDelivery  Tier = 3
	TierFlattened Tier = 4
)

// Descriptor describes one known format. Exactly one descriptor exists per
// extension and descriptors never change after process start.
type Descriptor struct {
	Extension string   `json:"extension"`
	Category  Category `json:"category"`
	Tier      Tier     `json:"tier"`
	Lossy     bool     `json:"lossy"`
	Layered   bool     `json:"layered"`
	Label     string   `json:"label"`
}

// registry is the single source of truth for format classification. It is a
// flat table rather than scattered conditionals so the policy engine stays a
// small pure function over two lookups.
var registry = map[string]Descriptor{
	// Archives and containers. Wrapping anything into a container is always
	// permitted, so every entry here sits at TierContainer.
	"zip": {Category: CategoryArchive, Tier: TierContainer, Label: "ZIP Archive"},
	"tar": {Category: CategoryArchive, Tier: TierContainer, Label: "TAR Archive"},
	"gz":  {Category: CategoryArchive, Tier: TierContainer, Label: "Gzip Archive"},
	"tgz": {Category: CategoryArchive, Tier: TierContainer, Label: "Gzipped TAR"},
	"7z":  {Category: CategoryArchive, Tier: TierContainer, Label: "7-Zip Archive"},
	"rar": {Category: CategoryArchive, Tier: TierContainer, Label: "RAR Archive"},

	// Images. Camera raw and PSD keep editable sub-content (layers, full
	// sensor data) and rank as source material.
	"psd":  {Category: CategoryImage, Tier: TierSource, Layered: true, Label: "Adobe Photoshop"},
	"cr2":  {Category: CategoryImage, Tier: TierSource, Layered: true, Label: "Canon RAW"},
	"nef":  {Category: CategoryImage, Tier: TierSource, Layered: true, Label: "Nikon RAW"},
	"arw":  {Category: CategoryImage, Tier: TierSource, Layered: true, Label: "Sony RAW"},
	"dng":  {Category: CategoryImage, Tier: TierSource, Layered: true, Label: "Digital Negative"},
	"tiff": {Category: CategoryImage, Tier: TierEditable, Label: "TIFF Image"},
	"heic": {Category: CategoryImage, Tier: TierDelivery, Lossy: true, Label: "HEIC Image"},
	"webp": {Category: CategoryImage, Tier: TierDelivery, Lossy: true, Label: "WebP Image"},
	"jpg":  {Category: CategoryImage, Tier: TierDelivery, Lossy: true, Label: "JPEG Image"},
	"jpeg": {Category: CategoryImage, Tier: TierDelivery, Lossy: true, Label: "JPEG Image"},
	"png":  {Category: CategoryImage, Tier: TierDelivery, Label: "PNG Image"},
	"gif":  {Category: CategoryImage, Tier: TierDelivery, Lossy: true, Label: "GIF Image"},
	"bmp":  {Category: CategoryImage, Tier: TierFlattened, Label: "Bitmap Image"},
	"ico":  {Category: CategoryImage, Tier: TierFlattened, Label: "Windows Icon"},

	// Audio.
	"wav":  {Category: CategoryAudio, Tier: TierSource, Label: "WAV Audio"},
	"aiff": {Category: CategoryAudio, Tier: TierSource, Label: "AIFF Audio"},
	"flac": {Category: CategoryAudio, Tier: TierEditable, Label: "FLAC Audio"},
	"alac": {Category: CategoryAudio, Tier: TierEditable, Label: "Apple Lossless"},
	"mp3":  {Category: CategoryAudio, Tier: TierDelivery, Lossy: true, Label: "MP3 Audio"},
	"aac":  {Category: CategoryAudio, Tier: TierDelivery, Lossy: true, Label: "AAC Audio"},
	"ogg":  {Category: CategoryAudio, Tier: TierDelivery, Lossy: true, Label: "Ogg Vorbis"},
	"m4a":  {Category: CategoryAudio, Tier: TierDelivery, Lossy: true, Label: "MPEG-4 Audio"},
	"wma":  {Category: CategoryAudio, Tier: TierDelivery, Lossy: true, Label: "Windows Media Audio"},

	// Video.
	"prores": {Category: CategoryVideo, Tier: TierSource, Label: "Apple ProRes"},
	"mkv":    {Category: CategoryVideo, Tier: TierEditable, Label: "Matroska Video"},
	"mov":    {Category: CategoryVideo, Tier: TierEditable, Label: "QuickTime Video"},
	"mp4":    {Category: CategoryVideo, Tier: TierDelivery, Lossy: true, Label: "MPEG-4 Video"},
	"webm":   {Category: CategoryVideo, Tier: TierDelivery, Lossy: true, Label: "WebM Video"},
	"avi":    {Category: CategoryVideo, Tier: TierDelivery, Lossy: true, Label: "AVI Video"},
	"wmv":    {Category: CategoryVideo, Tier: TierDelivery, Lossy: true, Label: "Windows Media Video"},
	"mpg":    {Category: CategoryVideo, Tier: TierDelivery, Lossy: true, Label: "MPEG Video"},

	// Documents. PDF keeps form fields and text structure, so it counts as
	// layered and editable alongside the office formats.
	"docx": {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "Word Document"},
	"docm": {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "Word Macro-Enabled Document"},
	"odt":  {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "OpenDocument Text"},
	"xlsx": {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "Excel Spreadsheet"},
	"xlsm": {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "Excel Macro-Enabled Spreadsheet"},
	"ods":  {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "OpenDocument Spreadsheet"},
	"pptx": {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "PowerPoint Presentation"},
	"odp":  {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "OpenDocument Presentation"},
	"pdf":  {Category: CategoryDocument, Tier: TierEditable, Layered: true, Label: "PDF Document"},
	"html": {Category: CategoryDocument, Tier: TierDelivery, Label: "HTML Document"},
	"rtf":  {Category: CategoryDocument, Tier: TierDelivery, Label: "Rich Text"},
	"txt":  {Category: CategoryDocument, Tier: TierFlattened, Label: "Plain Text"},
	"csv":  {Category: CategoryDocument, Tier: TierFlattened, Label: "CSV"},
	"md":   {Category: CategoryDocument, Tier: TierFlattened, Label: "Markdown"},

	// Vector graphics.
	"ai":  {Category: CategoryVector, Tier: TierSource, Layered: true, Label: "Adobe Illustrator"},
	"svg": {Category: CategoryVector, Tier: TierEditable, Layered: true, Label: "SVG Vector"},
	"eps": {Category: CategoryVector, Tier: TierDelivery, Label: "Encapsulated PostScript"},

	// Ebooks.
	"epub": {Category: CategoryEbook, Tier: TierDelivery, Label: "EPUB Ebook"},
	"mobi": {Category: CategoryEbook, Tier: TierDelivery, Lossy: true, Label: "Mobipocket Ebook"},
	"azw3": {Category: CategoryEbook, Tier: TierDelivery, Lossy: true, Label: "Kindle Ebook"},
	"fb2":  {Category: CategoryEbook, Tier: TierDelivery, Label: "FictionBook"},
}

// Normalize lowercases an extension and strips a leading dot so lookups are
// case-insensitive regardless of how clients spell the format.
func Normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Lookup returns the descriptor for an extension. The second return value
// reports whether the format is known.
func Lookup(ext string) (Descriptor, bool) {
	d, ok := registry[Normalize(ext)]
	if ok {
		d.Extension = Normalize(ext)
	}
	return d, ok
}

// Known reports whether the extension maps to a registered format.
func Known(ext string) bool {
	_, ok := registry[Normalize(ext)]
	return ok
}

// All returns every registered descriptor sorted by extension. The slice is
// freshly allocated; callers may not reach the underlying table.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for ext, d := range registry {
		d.Extension = ext
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Extension < out[j].Extension })
	return out
}
