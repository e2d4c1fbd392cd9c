package render

// RunStyle captures inline run formatting shared by the HTML and DOCX outputs.
type RunStyle struct {
	Bold   bool
	Italic bool
	Size   int // half-points, as in WordprocessingML
	Color  string
}

const (
	AccentColor  = "2563EB"
	HeadingColor = "1F2937"
	NameColor    = "111111"
	BodyColor    = "374151"
	HeadingSize  = 24
	NameSize     = 40
	BodySize     = 20
	MetaSize     = 18
)

// StyleMap centralizes formatting for key resume elements.
var StyleMap = map[string]RunStyle{
	"name": {
		Bold:  true,
		Size:  NameSize,
		Color: NameColor,
	},
	"title": {
		Size:  HeadingSize,
		Color: HeadingColor,
	},
	"sectionHeading": {
		Bold:  true,
		Size:  HeadingSize,
		Color: HeadingColor,
	},
	"entryHeading": {
		Bold: true,
		Size: BodySize,
	},
	"meta": {
		Italic: true,
		Size:   MetaSize,
	},
	"body": {
		Size:  BodySize,
		Color: BodyColor,
	},
}

type palette struct {
	Accent  string
	Heading string
	Name    string
	Body    string
}

var colors = palette{
	Accent:  AccentColor,
	Heading: HeadingColor,
	Name:    NameColor,
	Body:    BodyColor,
}
