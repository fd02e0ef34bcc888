package format

// mimeTypes maps registered extensions to the MIME type attached to produced
// results. Kept as a static table rather than the platform mime database so
// results are identical across deployments.
var mimeTypes = map[string]string{
	"zip": "application/zip",
	"tar": "application/x-tar",
	"gz":  "application/gzip",
	"tgz": "application/gzip",
	"7z":  "application/x-7z-compressed",
	"rar": "application/vnd.rar",

	"psd":  "image/vnd.adobe.photoshop",
	"cr2":  "image/x-canon-cr2",
	"nef":  "image/x-nikon-nef",
	"arw":  "image/x-sony-arw",
	"dng":  "image/x-adobe-dng",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"webp": "image/webp",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"ico":  "image/vnd.microsoft.icon",

	"wav":  "audio/wav",
	"aiff": "audio/aiff",
	"flac": "audio/flac",
	"alac": "audio/mp4",
	"mp3":  "audio/mpeg",
	"aac":  "audio/aac",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"wma":  "audio/x-ms-wma",

	"prores": "video/quicktime",
	"mkv":    "video/x-matroska",
	"mov":    "video/quicktime",
	"mp4":    "video/mp4",
	"webm":   "video/webm",
	"avi":    "video/x-msvideo",
	"wmv":    "video/x-ms-wmv",
	"mpg":    "video/mpeg",

	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"docm": "application/vnd.ms-word.document.macroEnabled.12",
	"odt":  "application/vnd.oasis.opendocument.text",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"odp":  "application/vnd.oasis.opendocument.presentation",
	"pdf":  "application/pdf",
	"html": "text/html; charset=utf-8",
	"rtf":  "application/rtf",
	"txt":  "text/plain; charset=utf-8",
	"csv":  "text/csv; charset=utf-8",
	"md":   "text/markdown; charset=utf-8",

	"ai":  "application/postscript",
	"svg": "image/svg+xml",
	"eps": "application/postscript",

	"epub": "application/epub+zip",
	"mobi": "application/x-mobipocket-ebook",
	"azw3": "application/vnd.amazon.ebook",
	"fb2":  "application/x-fictionbook+xml",
}

// MIMEType returns the MIME type for an extension, defaulting to
// application/octet-stream for anything unknown.
func MIMEType(ext string) string {
	if m, ok := mimeTypes[Normalize(ext)]; ok {
		return m
	}
	return "application/octet-stream"
}
