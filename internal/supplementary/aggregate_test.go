package supplementary

import (
	"strings"
	"testing"

	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_Tables(t *testing.T) {
	c, err := Aggregate(testutil.CurrentSchemaRecording())
	require.NoError(t, err)

	require.Len(t, c.ChangedParameters, 3)
	assert.Equal(t, ParameterRow{TimeS: 0.2, Name: "MC_ROLL_P", OldValue: 6.5, NewValue: 7.0}, c.ChangedParameters[0])

	require.Len(t, c.Messages, 2)
	assert.Equal(t, "Takeoff detected", c.Messages[0].Message)
	assert.InDelta(t, 0.9, c.Messages[1].TimeS, 1e-9)
}

func TestAggregate_AdditionalHTML(t *testing.T) {
	c, err := Aggregate(testutil.CurrentSchemaRecording())
	require.NoError(t, err)

	html := string(c.AdditionalHTML)
	assert.Contains(t, html, `id="show-additional-data"`)
	assert.Contains(t, html, "<h5>Console Output</h5>")
	assert.Contains(t, html, "<pre>NuttShell (NSH)\nnsh&gt; &lt;ok&gt;\n</pre>")
	assert.Contains(t, html, "<h5>Processes</h5>")
	assert.Contains(t, html, "Pre Flight:<br/><pre>PID COMMAND\n0 Idle Task</pre>")
	assert.NotContains(t, html, "Performance Counters")
	assert.NotContains(t, html, "<ok>")
}

func TestAggregate_SectionOrder(t *testing.T) {
	rec := testutil.NewRecording(0, 10).
		InfoMultiple("perf_counter_postflight", "post perf").
		InfoMultiple("perf_top_watchdog", "wd").
		InfoMultiple("perf_top_postflight", "post top").
		InfoMultiple("perf_counter_preflight", "pre perf").
		Build()

	sections := additionalSections(rec)
	require.Len(t, sections, 2)
	assert.Equal(t, "Processes", sections[0].Heading)
	assert.Equal(t, []block{{Label: "Post Flight", Text: "post top"}, {Label: "Watchdog", Text: "wd"}}, sections[0].Blocks)
	assert.Equal(t, "Performance Counters", sections[1].Heading)
	assert.Equal(t, "Pre Flight", sections[1].Blocks[0].Label)
	assert.Equal(t, "Post Flight", sections[1].Blocks[1].Label)

	c, err := Aggregate(rec)
	require.NoError(t, err)
	html := string(c.AdditionalHTML)
	assert.True(t, strings.Index(html, "Processes") < strings.Index(html, "Performance Counters"))
}

func TestAggregate_MissingKeys(t *testing.T) {
	c, err := Aggregate(models.NewLogRecording(0, 100))
	require.NoError(t, err)
	assert.Empty(t, c.AdditionalHTML)
	assert.Empty(t, c.ChangedParameters)
	assert.Empty(t, c.Messages)

	rec := models.NewLogRecording(0, 100)
	rec.InfoMultiple["boot_console_output"] = nil
	c, err = Aggregate(rec)
	require.NoError(t, err)
	assert.Empty(t, c.AdditionalHTML)
}

func TestAggregate_Nil(t *testing.T) {
	c, err := Aggregate(nil)
	require.NoError(t, err)
	assert.Equal(t, Content{}, c)
}
