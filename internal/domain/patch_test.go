package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatch_RejectsUnknownField(t *testing.T) {
	_, err := ParsePatch([]byte(`{"notes":"x","title":"y"}`))
	require.ErrorIs(t, err, ErrValidation)
}

func TestParsePatch_RejectsUnknownLanguage(t *testing.T) {
	_, err := ParsePatch([]byte(`{"language":"cobol"}`))
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParsePatch([]byte(`{"codes":{"rust":"fn main(){}"}}`))
	require.ErrorIs(t, err, ErrValidation)
}

func TestParsePatch_Fields(t *testing.T) {
	p, err := ParsePatch([]byte(`{"language":"python","code":"print(1)","codes":{"python":"print(1)"}}`))
	require.NoError(t, err)
	assert.Equal(t, []Field{FieldCode, FieldLanguage, FieldCodes}, p.Fields())
}

func TestParsePatch_EmptyWhiteboardIsAField(t *testing.T) {
	p, err := ParsePatch([]byte(`{"whiteboard":[]}`))
	require.NoError(t, err)
	require.NotNil(t, p.Whiteboard)
	assert.Empty(t, *p.Whiteboard)
	assert.Equal(t, []Field{FieldWhiteboard}, p.Fields())
}

func TestStrokeValidation(t *testing.T) {
	_, err := ParsePatch([]byte(`{"whiteboard":[{"id":"s1","color":"#fff","width":0,"points":[]}]}`))
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParsePatch([]byte(`{"whiteboard":[{"id":"","color":"#fff","width":2,"points":[]}]}`))
	require.ErrorIs(t, err, ErrValidation)
}

func TestDocumentsApply_MergesCodesByKey(t *testing.T) {
	d := DefaultDocuments()
	cpp := d.Codes[LangCPP]

	changed := d.Apply(LanguageSwitch(LangPython, "print(1)"))

	assert.ElementsMatch(t, []Field{FieldCode, FieldLanguage, FieldCodes}, changed)
	assert.Equal(t, LangPython, d.Language)
	assert.Equal(t, "print(1)", d.Codes[LangPython])
	assert.Equal(t, cpp, d.Codes[LangCPP])
}

func TestDocumentsApply_LeavesAbsentFields(t *testing.T) {
	d := DefaultDocuments()
	d.Apply(NotesEdit("x"))

	assert.Equal(t, "x", d.Notes)
	assert.Equal(t, LangCPP, d.Language)
	assert.Equal(t, Template(LangCPP), d.Code)
}

func TestWhiteboardReplace_CopiesInput(t *testing.T) {
	strokes := []Stroke{{ID: "a", Color: "#000", Width: 2, Points: []Point{{X: 1, Y: 1}}}}
	p := WhiteboardReplace(strokes)
	strokes[0].Points[0].X = 99

	assert.Equal(t, float64(1), (*p.Whiteboard)[0].Points[0].X)
}

func TestTruncateName(t *testing.T) {
	long := ""
	for i := 0; i < 70; i++ {
		long += "я"
	}
	assert.Len(t, []rune(TruncateName(long)), MaxNameLength)
	assert.Equal(t, "Ann", TruncateName("Ann"))
}
