package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/thyrocheck/internal/thyroid"
)

func TestEmbeddedTables(t *testing.T) {
	tables, err := Load()
	require.NoError(t, err)

	hormones := tables.Hormones()
	require.Len(t, hormones, 4)
	codes := []string{}
	for _, h := range hormones {
		codes = append(codes, h.Code)
		assert.NotEmpty(t, h.Name)
		assert.NotEmpty(t, h.NormalRange)
	}
	assert.Equal(t, []string{"TSH", "T3", "T4", "FT4"}, codes)

	tsh, ok := tables.Hormone("tsh")
	require.True(t, ok)
	assert.Equal(t, "0.4 - 4.0 mIU/L", tsh.NormalRange)
	assert.Equal(t, "May indicate hypothyroidism", tsh.HighMeaning)

	_, ok = tables.Hormone("cortisol")
	assert.False(t, ok)
}

func TestHormonesReturnsCopy(t *testing.T) {
	tables := MustLoad()
	h := tables.Hormones()
	h[0].Name = "changed"
	assert.Equal(t, "Thyroid Stimulating Hormone", tables.Hormones()[0].Name)
}

func TestConditionFor(t *testing.T) {
	cases := map[thyroid.Label]Condition{
		thyroid.LabelNegative:               ConditionNormal,
		thyroid.LabelPrimaryHypothyroid:     ConditionHypothyroid,
		thyroid.LabelCompensatedHypothyroid: ConditionHypothyroid,
		thyroid.LabelPrimaryHyperthyroid:    ConditionHyperthyroid,
		"secondary_hyperthyroid":            ConditionHyperthyroid,
	}
	for label, want := range cases {
		assert.Equal(t, want, ConditionFor(label), label)
	}
}

func TestDiet(t *testing.T) {
	tables := MustLoad()

	t.Run("hypothyroid", func(t *testing.T) {
		advice := tables.Diet(ConditionHypothyroid, false)
		require.Len(t, advice.Plans, 1)
		assert.Equal(t, "Increase iodine-rich foods (seafood, dairy, eggs)", advice.Plans[0].General[0])
		assert.Len(t, advice.Plans[0].Avoid, 3)
	})

	t.Run("hyperthyroid and pregnant", func(t *testing.T) {
		advice := tables.Diet(ConditionHyperthyroid, true)
		require.Len(t, advice.Plans, 2)
		assert.Equal(t, "Large meals", advice.Plans[0].Avoid[3])
		assert.Equal(t, "High-mercury fish", advice.Plans[1].Avoid[4])
	})

	t.Run("normal has no condition plan", func(t *testing.T) {
		advice := tables.Diet(ConditionNormal, false)
		assert.Equal(t, ConditionNormal, advice.Condition)
		assert.Empty(t, advice.Plans)
	})

	t.Run("no prediction", func(t *testing.T) {
		advice := tables.Diet(ConditionNone, false)
		assert.Equal(t, ConditionNone, advice.Condition)
		assert.NotNil(t, advice.Plans)
		assert.Empty(t, advice.Plans)
	})
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition(" Hypothyroid ")
	require.NoError(t, err)
	assert.Equal(t, ConditionHypothyroid, c)

	c, err = ParseCondition("")
	require.NoError(t, err)
	assert.Equal(t, ConditionNone, c)

	_, err = ParseCondition("euthyroid")
	assert.Error(t, err)
}

func TestParseRejectsIncompleteTables(t *testing.T) {
	_, err := parse([]byte("hormones: []\n"))
	assert.Error(t, err)

	_, err = parse([]byte("hormones:\n  - code: TSH\ndiets:\n  hypothyroid: {}\n"))
	assert.ErrorContains(t, err, "missing diet")
}
