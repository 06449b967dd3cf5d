package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{
		Number("femaleMembers"),
		Text("narrative"),
		Bool("hasPolicy"),
		Computed("share"),
	}
}

func TestSchemaCheck(t *testing.T) {
	s := testSchema()

	v, err := s.Check("femaleMembers", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = s.Check("narrative", nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = s.Check("unknown", 1)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = s.Check("share", 10)
	assert.ErrorIs(t, err, ErrDerivedField)

	_, err = s.Check("hasPolicy", "yes")
	assert.ErrorIs(t, err, ErrFieldKind)

	_, err = s.Check("femaleMembers", "3")
	assert.ErrorIs(t, err, ErrFieldKind)
}

func TestSchemaConformDropsUnknownAndAcceptsDerived(t *testing.T) {
	out, dropped, err := testSchema().Conform(Fields{
		"femaleMembers": 2.0,
		"share":         40.0,
		"legacyColumn":  "x",
	})
	require.NoError(t, err)
	assert.Equal(t, Fields{"femaleMembers": 2.0, "share": 40.0}, out)
	assert.Equal(t, []string{"legacyColumn"}, dropped)
}

func TestSchemaConformRejectsKindMismatch(t *testing.T) {
	_, _, err := testSchema().Conform(Fields{"hasPolicy": 1.0})
	assert.ErrorIs(t, err, ErrFieldKind)
}

func TestSchemaNames(t *testing.T) {
	assert.Equal(t, []string{"femaleMembers", "narrative", "hasPolicy", "share"}, testSchema().Names())
}

func TestSectionValidate(t *testing.T) {
	valid := Section{
		Collection: "bp2_governance_diversity",
		Schema:     testSchema(),
		Initial:    Fields{"hasPolicy": false},
		Rules:      []Rule{PercentOfTotal("share", "femaleMembers", "femaleMembers")},
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.Collection = "Bad Name"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidKey)

	bad = valid
	bad.Rules = []Rule{Sum("femaleMembers", "share")}
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Rules = append(bad.Rules, PercentOfTotal("share", "femaleMembers", "femaleMembers"))
	assert.ErrorIs(t, bad.Validate(), ErrDuplicateRule)

	bad = valid
	bad.Rules = []Rule{nil}
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Initial = Fields{"nope": 1.0}
	assert.ErrorIs(t, bad.Validate(), ErrUnknownField)

	bad = valid
	bad.Schema = append(Schema{Number("id")}, valid.Schema...)
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Schema = append(Schema{Text("narrative")}, valid.Schema...)
	assert.Error(t, bad.Validate())
}

func TestSectionInitialFieldsIsCopy(t *testing.T) {
	s := Section{Initial: Fields{"a": 1.0}}
	f := s.InitialFields()
	f["a"] = 2.0
	assert.Equal(t, 1.0, s.Initial["a"])
	assert.Equal(t, Fields{}, Section{}.InitialFields())
	assert.IsType(t, SnakeCase{}, Section{}.FieldNaming())
}

func TestValidateKey(t *testing.T) {
	require.NoError(t, ValidateKey("b8_workforce", "r-1"))
	assert.ErrorIs(t, ValidateKey("", "r-1"), ErrInvalidKey)
	assert.ErrorIs(t, ValidateKey("b8_workforce", ""), ErrInvalidKey)
	assert.ErrorIs(t, ValidateKey("b8; DROP", "r"), ErrInvalidKey)
}
