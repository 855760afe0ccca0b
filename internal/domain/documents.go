package domain

type Language string

const (
	LangCPP        Language = "cpp"
	LangC          Language = "c"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangJava       Language = "java"
)

func (l Language) Valid() bool {
	_, ok := templates[l]
	return ok
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke — один непрерывный штрих на доске.
type Stroke struct {
	ID     string  `json:"id"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Points []Point `json:"points"`
}

type Documents struct {
	Code       string              `json:"code"`
	Language   Language            `json:"language"`
	Codes      map[Language]string `json:"codes"`
	Notes      string              `json:"notes"`
	Whiteboard []Stroke            `json:"whiteboard"`
	Input      string              `json:"input"`
	Output     string              `json:"output"`
}

const DefaultNotes = "Capture interview notes, rubrics, and follow-ups here."

// DefaultDocuments — документы новой комнаты.
func DefaultDocuments() Documents {
	code := Template(LangCPP)
	return Documents{
		Code:       code,
		Language:   LangCPP,
		Codes:      map[Language]string{LangCPP: code},
		Notes:      DefaultNotes,
		Whiteboard: []Stroke{},
	}
}

func (d Documents) Clone() Documents {
	out := d
	out.Codes = make(map[Language]string, len(d.Codes))
	for k, v := range d.Codes {
		out.Codes[k] = v
	}
	out.Whiteboard = CloneStrokes(d.Whiteboard)
	return out
}

func CloneStrokes(in []Stroke) []Stroke {
	out := make([]Stroke, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Points = append([]Point(nil), s.Points...)
	}
	return out
}

// Apply пишет в документы только поля, присутствующие в патче.
func (d *Documents) Apply(p DocumentPatch) []Field {
	changed := p.Fields()
	if p.Code != nil {
		d.Code = *p.Code
	}
	if p.Language != nil {
		d.Language = *p.Language
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.Whiteboard != nil {
		d.Whiteboard = CloneStrokes(*p.Whiteboard)
	}
	if len(p.Codes) > 0 {
		if d.Codes == nil {
			d.Codes = make(map[Language]string, len(p.Codes))
		}
		for lang, code := range p.Codes {
			d.Codes[lang] = code
		}
	}
	if p.Input != nil {
		d.Input = *p.Input
	}
	if p.Output != nil {
		d.Output = *p.Output
	}
	return changed
}
