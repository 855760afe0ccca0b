package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Field — поле документов, которое пишется атомарно и независимо.
type Field string

const (
	FieldCode       Field = "code"
	FieldLanguage   Field = "language"
	FieldCodes      Field = "codes"
	FieldNotes      Field = "notes"
	FieldWhiteboard Field = "whiteboard"
	FieldInput      Field = "input"
	FieldOutput     Field = "output"
)

// DocumentPatch — частичный набор полей документов. nil = поле не трогаем.
// Codes сливается по ключам языка, остальные поля заменяются целиком.
type DocumentPatch struct {
	Code       *string             `json:"code,omitempty"`
	Language   *Language           `json:"language,omitempty"`
	Codes      map[Language]string `json:"codes,omitempty"`
	Notes      *string             `json:"notes,omitempty"`
	Whiteboard *[]Stroke           `json:"whiteboard,omitempty"`
	Input      *string             `json:"input,omitempty"`
	Output     *string             `json:"output,omitempty"`
}

// ParsePatch декодирует патч и отклоняет неизвестные поля.
func ParsePatch(data []byte) (DocumentPatch, error) {
	var p DocumentPatch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return DocumentPatch{}, fmt.Errorf("%w: decode patch: %v", ErrValidation, err)
	}
	if err := p.Validate(); err != nil {
		return DocumentPatch{}, err
	}
	return p, nil
}

// Fields возвращает изменяемые поля в фиксированном порядке.
func (p DocumentPatch) Fields() []Field {
	var out []Field
	if p.Code != nil {
		out = append(out, FieldCode)
	}
	if p.Language != nil {
		out = append(out, FieldLanguage)
	}
	if len(p.Codes) > 0 {
		out = append(out, FieldCodes)
	}
	if p.Notes != nil {
		out = append(out, FieldNotes)
	}
	if p.Whiteboard != nil {
		out = append(out, FieldWhiteboard)
	}
	if p.Input != nil {
		out = append(out, FieldInput)
	}
	if p.Output != nil {
		out = append(out, FieldOutput)
	}
	return out
}

func (p DocumentPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

func (p DocumentPatch) Validate() error {
	if p.Language != nil && !p.Language.Valid() {
		return fmt.Errorf("%w: unknown language %q", ErrValidation, *p.Language)
	}
	for lang := range p.Codes {
		if !lang.Valid() {
			return fmt.Errorf("%w: unknown language %q in codes", ErrValidation, lang)
		}
	}
	if p.Whiteboard != nil {
		for i, s := range *p.Whiteboard {
			if err := s.validate(); err != nil {
				return fmt.Errorf("%w: stroke %d: %v", ErrValidation, i, err)
			}
		}
	}
	return nil
}

func (s Stroke) validate() error {
	if s.ID == "" {
		return fmt.Errorf("empty id")
	}
	if s.Width <= 0 || math.IsNaN(s.Width) || math.IsInf(s.Width, 0) {
		return fmt.Errorf("invalid width %v", s.Width)
	}
	for _, pt := range s.Points {
		if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
			return fmt.Errorf("invalid point")
		}
	}
	return nil
}

// --- варианты патчей, которые шлёт клиент ---

// CodeEdit — правка кода текущего языка, сохраняется и в codes.
func CodeEdit(lang Language, code string) DocumentPatch {
	return DocumentPatch{Code: &code, Codes: map[Language]string{lang: code}}
}

// LanguageSwitch — смена языка; code — сохранённый или шаблонный текст.
func LanguageSwitch(lang Language, code string) DocumentPatch {
	return DocumentPatch{Language: &lang, Code: &code, Codes: map[Language]string{lang: code}}
}

func NotesEdit(notes string) DocumentPatch {
	return DocumentPatch{Notes: &notes}
}

func InputEdit(input string) DocumentPatch {
	return DocumentPatch{Input: &input}
}

func OutputEdit(output string) DocumentPatch {
	return DocumentPatch{Output: &output}
}

// WhiteboardReplace — весь список штрихов, всегда целиком.
func WhiteboardReplace(strokes []Stroke) DocumentPatch {
	list := CloneStrokes(strokes)
	return DocumentPatch{Whiteboard: &list}
}
