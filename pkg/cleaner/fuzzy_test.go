package cleaner

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

func newDedup(t *testing.T, metric Metric) *FuzzyDeduplicator {
	d, err := NewFuzzyDeduplicator(metric, zaptest.NewLogger(t))
	require.NoError(t, err)
	return d
}

func TestEditRatio(t *testing.T) {
	assert.Equal(t, 1.0, EditRatio("", ""))
	assert.Equal(t, 1.0, EditRatio("abc", "abc"))
	assert.InDelta(t, 0.9, EditRatio("jonathan@x", "jonathon@x"), 1e-9)
	assert.Equal(t, 0.0, EditRatio("abc", "xyz"))
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 1.0, TokenSetRatio("new york mets", "mets new york"))
	assert.Equal(t, 1.0, TokenSetRatio("new york", "new york mets"))
	assert.Less(t, TokenSetRatio("apple", "banana"), 0.5)
}

func TestFuzzyDeduplicateEmails(t *testing.T) {
	d := newDedup(t, MetricEditRatio)
	col := model.StringColumn("email", "bob@x.com", "Bob@X.com ", "alice@x.com")

	action, err := d.Deduplicate(col, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 1, action.Count)
	assert.Equal(t, model.StageFuzzyDeduplication, action.Stage)
	assert.Equal(t, "Deduplicated 1 text entries in 'email' using fuzzy matching (edit_ratio >= 0.90)", action.Description)
	assert.Equal(t, []string{"bob@x.com", "bob@x.com", "alice@x.com"}, texts(col))
}

func TestFuzzyRepresentativeIsMostFrequent(t *testing.T) {
	d := newDedup(t, MetricEditRatio)
	col := model.StringColumn("name", "jonathan smith", "jonathon smith", "jonathon smith", "")

	action, err := d.Deduplicate(col, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 1, action.Count)
	assert.Equal(t, []string{"jonathon smith", "jonathon smith", "jonathon smith", "<missing>"}, texts(col))
}

func TestFuzzySingleLinkIsTransitive(t *testing.T) {
	d := newDedup(t, MetricEditRatio)
	// a~b and b~c at 0.8 but a and c are further apart
	col := model.StringColumn("code", "abcde", "abcdx", "abcxx")

	action, err := d.Deduplicate(col, 0.8)
	require.NoError(t, err)
	assert.Equal(t, 2, action.Count)
	assert.Equal(t, []string{"abcde", "abcde", "abcde"}, texts(col))
}

func TestFuzzyDeduplicateIsIdempotent(t *testing.T) {
	d := newDedup(t, MetricEditRatio)
	col := model.StringColumn("email", "bob@x.com", "bob@x.con", "carol@y.org", "carol@y.orb")

	_, err := d.Deduplicate(col, 0.85)
	require.NoError(t, err)
	again, err := d.Deduplicate(col, 0.85)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Count)
}

func TestFuzzyThresholdValidation(t *testing.T) {
	d := newDedup(t, MetricEditRatio)
	for _, tau := range []float64{0, -0.1, 1.01} {
		_, err := d.Deduplicate(model.StringColumn("x", "a"), tau)
		assert.True(t, errors.Is(err, ErrInvalidThreshold), "tau %v", tau)
	}
	_, err := d.Deduplicate(model.StringColumn("x", "a", "a "), 1)
	assert.NoError(t, err)
}

func TestNewFuzzyDeduplicatorRejectsUnknownMetric(t *testing.T) {
	_, err := NewFuzzyDeduplicator("jaro", nil)
	assert.True(t, errors.Is(err, ErrInvalidStrategy))
}
