package narration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchScriptsRestoresSubmissionOrder(t *testing.T) {
	raw := `{"items":[
		{"index":2,"script":"셋째 장면"},
		{"index":0,"script":"첫째 장면"},
		{"index":1,"script":"둘째 장면"}
	]}`

	scripts, err := parseBatchScripts(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"첫째 장면", "둘째 장면", "셋째 장면"}, scripts)
}

func TestParseBatchScriptsAcceptsBareArray(t *testing.T) {
	raw := `[{"index":1,"script":"b"},{"index":0,"script":"a"}]`

	scripts, err := parseBatchScripts(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, scripts)
}

func TestParseBatchScriptsStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"items\":[{\"index\":0,\"script\":\"fenced\"}]}\n```"

	scripts, err := parseBatchScripts(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"fenced"}, scripts)
}

func TestParseBatchScriptsMalformed(t *testing.T) {
	_, err := parseBatchScripts("oops, not json at all")
	assert.ErrorIs(t, err, ErrBatchParse)

	_, err = parseBatchScripts("")
	assert.ErrorIs(t, err, ErrBatchParse)
}

func TestStylePromptFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, StyleOptions[len(StyleOptions)-1].Prompt, StylePromptFor("nope"))
	assert.Equal(t, StyleOptions[0].Prompt, StylePromptFor("sermon"))
}
