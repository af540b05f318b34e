package advice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medai-go/internal/model"
)

func TestParseV1Sections(t *testing.T) {
	content := `<p>Hello, I'm sorry you're unwell.</p>` +
		`<section data-advice="self_care"><h3>Self-Care Advice</h3><ul><li>Rest</li><li>Hydrate</li></ul></section>` +
		`<section data-advice="see_doctor"><p>If it lasts more than a week.</p></section>` +
		`<p>Do you have any questions?</p>`

	resp := Parse(content)
	require.True(t, resp.IsStructured())
	assert.Equal(t, SchemaV1, resp.Schema)
	assert.Equal(t, "<p>Hello, I&#39;m sorry you&#39;re unwell.</p>", resp.Intro)
	assert.Equal(t, "<p>Do you have any questions?</p>", resp.Outro)

	require.Len(t, resp.Sections, 2)
	selfCare, ok := resp.Section(model.SectionSelfCare)
	require.True(t, ok)
	assert.Equal(t, "Self-Care Advice", selfCare.Title)
	assert.Equal(t, "<ul><li>Rest</li><li>Hydrate</li></ul>", selfCare.Body)

	doctor, ok := resp.Section(model.SectionSeeDoctor)
	require.True(t, ok)
	assert.Equal(t, "When to See a Doctor", doctor.Title)

	_, ok = resp.Section(model.SectionImmediateCare)
	assert.False(t, ok)
}

func TestParseLegacyCollapsible(t *testing.T) {
	content := `<p>Thanks for sharing.</p>
<div class="collapsible-section active">
    <div class="collapsible-header" onclick="toggleCollapsible(this)">
        <span>🔍 Possible Causes</span>
        <span class="collapsible-icon">▼</span>
    </div>
    <div class="collapsible-content">
        <div class="collapsible-body"><ul><li><strong>Tension headache</strong></li></ul></div>
    </div>
</div>
<div class="collapsible-section">
    <div class="collapsible-header"><span>🏠 Self-Care Advice</span></div>
    <div class="collapsible-content"><div class="collapsible-body"><p>Rest in a dark room.</p></div></div>
</div>`

	resp := Parse(content)
	require.True(t, resp.IsStructured())
	assert.Equal(t, SchemaCollapsible, resp.Schema)
	require.Len(t, resp.Sections, 2)

	causes := resp.Sections[0]
	assert.Equal(t, model.SectionPossibleCauses, causes.Kind)
	assert.Equal(t, "Possible Causes", causes.Title)
	assert.Contains(t, causes.Body, "<strong>Tension headache</strong>")
	assert.NotContains(t, causes.Body, "onclick")

	assert.Equal(t, model.SectionSelfCare, resp.Sections[1].Kind)
	assert.Contains(t, resp.Sections[1].Body, "Rest in a dark room.")
	assert.Contains(t, resp.Intro, "Thanks for sharing.")
}

func TestParseHeadings(t *testing.T) {
	content := `<h3>Possible Causes</h3><p>Viral infection.</p><ul><li>Cold</li></ul>` +
		`<h3>When to Seek Immediate Care</h3><p>Trouble breathing.</p>`

	resp := Parse(content)
	require.True(t, resp.IsStructured())
	assert.Equal(t, SchemaHeadings, resp.Schema)
	require.Len(t, resp.Sections, 2)
	assert.Equal(t, "<p>Viral infection.</p><ul><li>Cold</li></ul>", resp.Sections[0].Body)
	assert.Equal(t, model.SectionImmediateCare, resp.Sections[1].Kind)
	assert.Equal(t, "<p>Trouble breathing.</p>", resp.Sections[1].Body)
}

func TestParseHeadingsUnrelatedHeadingEndsSection(t *testing.T) {
	content := `<h3>Self-Care Advice</h3><h4>Hydration</h4><p>Drink water.</p>` +
		`<h3>Summary</h3><p>Most headaches pass on their own.</p>`

	resp := Parse(content)
	require.Len(t, resp.Sections, 1)
	assert.Equal(t, "<h4>Hydration</h4><p>Drink water.</p>", resp.Sections[0].Body)
	assert.Equal(t, "<h3>Summary</h3><p>Most headaches pass on their own.</p>", resp.Outro)
}

func TestCleanTitleKeepsNonLatinLetters(t *testing.T) {
	assert.Equal(t, "原因", cleanTitle("🔍 原因 "))
	assert.Equal(t, "Épisode urgent", cleanTitle("⚠️  Épisode urgent"))
	assert.Equal(t, "Possible Causes (common)", cleanTitle("🔍 Possible Causes (common) ▼"))

	resp := Parse(`<div class="collapsible-section"><div class="collapsible-header"><span>⚠️ Épisode urgent</span></div>` +
		`<div class="collapsible-content"><p>Appelez le 15.</p></div></div>`)
	require.Len(t, resp.Sections, 1)
	assert.Equal(t, model.SectionImmediateCare, resp.Sections[0].Kind)
	assert.Equal(t, "Épisode urgent", resp.Sections[0].Title)
}

func TestParsePlainMessage(t *testing.T) {
	resp := Parse(`<p>Drinking water regularly helps.</p>`)
	assert.False(t, resp.IsStructured())
	assert.Equal(t, SchemaPlain, resp.Schema)
	assert.Equal(t, "<p>Drinking water regularly helps.</p>", resp.Intro)

	unknown := Parse(`<section data-advice="horoscope"><p>Stars align.</p></section>`)
	assert.False(t, unknown.IsStructured())
	assert.Contains(t, unknown.Intro, "Stars align.")
}

func TestParseStripsScriptsAndFences(t *testing.T) {
	content := "```html\n<div><section data-advice=\"self_care\"><p>Rest.</p><script>alert(1)</script></section></div>\n```"

	resp := Parse(content)
	require.True(t, resp.IsStructured())
	section, ok := resp.Section(model.SectionSelfCare)
	require.True(t, ok)
	assert.Equal(t, "<p>Rest.</p>", section.Body)
	assert.Equal(t, "Self-Care Advice", section.Title)
}

func TestParseMergesRepeatedKinds(t *testing.T) {
	resp := Parse(`<section data-advice="self_care"><p>A</p></section><section data-advice="self_care"><p>B</p></section>`)
	require.Len(t, resp.Sections, 1)
	assert.Equal(t, "<p>A</p><p>B</p>", resp.Sections[0].Body)
}

func TestClassify(t *testing.T) {
	cases := map[string]model.SectionKind{
		"🔍 Possible Causes":                  model.SectionPossibleCauses,
		"Self Care Tips":                      model.SectionSelfCare,
		"When to See a Doctor":                model.SectionSeeDoctor,
		"When to Seek Immediate Medical Care": model.SectionImmediateCare,
		"EMERGENCY warning signs":             model.SectionImmediateCare,
	}
	for title, want := range cases {
		got, ok := Classify(title)
		assert.True(t, ok, title)
		assert.Equal(t, want, got, title)
	}
	_, ok := Classify("Summary")
	assert.False(t, ok)
}
