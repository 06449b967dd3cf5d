package vsme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsmecore/pkg/domain"
)

func TestCatalogDefinitionsAreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Sections() {
		require.NoError(t, s.Validate(), s.Collection)
		assert.False(t, seen[s.Collection], "duplicate collection %s", s.Collection)
		seen[s.Collection] = true
		assert.NotEmpty(t, s.Title)
	}
	assert.Len(t, Collections(), len(Sections()))
}

func TestLookup(t *testing.T) {
	s, ok := Lookup(GovernanceDiversity)
	require.True(t, ok)
	assert.Equal(t, GovernanceDiversity, s.Collection)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func apply(t *testing.T, collection string, in domain.Fields) domain.Fields {
	t.Helper()
	s, ok := Lookup(collection)
	require.True(t, ok)
	return s.Engine().Apply(in)
}

func TestGenderDiversityIndex(t *testing.T) {
	out := apply(t, GovernanceDiversity, domain.Fields{
		"femaleGovernanceMembers":      3.0,
		"maleGovernanceMembers":        7.0,
		"otherGenderGovernanceMembers": 0.0,
	})
	assert.Equal(t, 30.0, out["genderDiversityIndex"])

	out = apply(t, GovernanceDiversity, domain.Fields{
		"femaleGovernanceMembers":      0.0,
		"maleGovernanceMembers":        0.0,
		"otherGenderGovernanceMembers": 0.0,
	})
	assert.Equal(t, 0.0, out["genderDiversityIndex"])
}

func TestWorkforceDerivedFields(t *testing.T) {
	out := apply(t, Workforce, domain.Fields{
		"maleEmployees":   6.0,
		"femaleEmployees": 4.0,
		"employeesLeft":   2.0,
	})
	assert.Equal(t, 10.0, out["totalEmployees"])
	assert.Equal(t, 40.0, out["femaleEmployeePercentage"])
	assert.Equal(t, 20.0, out["employeeTurnoverRate"])

	out = apply(t, Workforce, domain.Fields{"employeesLeft": 2.0})
	assert.Nil(t, out["totalEmployees"])
	assert.Equal(t, 0.0, out["femaleEmployeePercentage"])
	assert.Nil(t, out["employeeTurnoverRate"])
}

func TestApprenticePercentage(t *testing.T) {
	assert.Equal(t, 12.5, apply(t, Apprentices, domain.Fields{"apprentices": 5.0, "totalEmployees": 40.0})["apprenticePercentage"])
	assert.Equal(t, 0.0, apply(t, Apprentices, domain.Fields{"apprentices": 5.0, "totalEmployees": 0.0})["apprenticePercentage"])
}

func TestWageRatioUndefinedWithoutMedian(t *testing.T) {
	assert.Equal(t, 4.0, apply(t, WageRatio, domain.Fields{"highestPaidRemuneration": 200000.0, "medianRemuneration": 50000.0})["annualTotalRemunerationRatio"])
	assert.Nil(t, apply(t, WageRatio, domain.Fields{"highestPaidRemuneration": 200000.0, "medianRemuneration": 0.0})["annualTotalRemunerationRatio"])
}

func TestEnergyEmissionsChain(t *testing.T) {
	out := apply(t, EnergyEmissions, domain.Fields{
		"renewableElectricityMwh":    30.0,
		"nonRenewableElectricityMwh": 50.0,
		"fuelsMwh":                   20.0,
		"scope1Emissions":            12.0,
		"scope2LocationEmissions":    8.0,
		"turnover":                   4.0,
	})
	assert.Equal(t, 100.0, out["totalEnergyMwh"])
	assert.Equal(t, 30.0, out["renewableSharePercentage"])
	assert.Equal(t, 20.0, out["totalGhgEmissions"])
	assert.Equal(t, 5.0, out["ghgIntensity"])
}

func TestAccidentRateAndPayGap(t *testing.T) {
	assert.Equal(t, 2.0, apply(t, HealthSafety, domain.Fields{"recordableAccidents": 1.0, "hoursWorked": 100000.0})["accidentRate"])
	assert.Nil(t, apply(t, HealthSafety, domain.Fields{"recordableAccidents": 1.0})["accidentRate"])
	assert.Equal(t, 12.5, apply(t, Remuneration, domain.Fields{"averageMaleGrossHourlyPay": 24.0, "averageFemaleGrossHourlyPay": 21.0})["genderPayGap"])
}

func TestWasteRecyclingRate(t *testing.T) {
	out := apply(t, Waste, domain.Fields{"hazardousWasteTonnes": 1.0, "nonHazardousWasteTonnes": 3.0, "recycledWasteTonnes": 2.0})
	assert.Equal(t, 4.0, out["totalWasteTonnes"])
	assert.Equal(t, 50.0, out["recyclingRate"])
}

func TestBusinessPartnerSections(t *testing.T) {
	assert.Equal(t, 150.0, apply(t, SectorRevenue, domain.Fields{"coalRevenue": 100.0, "gasRevenue": 50.0})["fossilFuelRevenue"])
	assert.Equal(t, 42.0, apply(t, EmissionTargets, domain.Fields{"baseYearEmissions": 500.0, "targetYearEmissions": 290.0})["targetReductionPercentage"])
	assert.Nil(t, apply(t, EmissionTargets, domain.Fields{"targetYearEmissions": 290.0})["targetReductionPercentage"])

	out := apply(t, WorkLifeBalance, domain.Fields{
		"femaleEntitledToFamilyLeave": 8.0,
		"femaleTookFamilyLeave":       6.0,
		"maleEntitledToFamilyLeave":   0.0,
		"maleTookFamilyLeave":         0.0,
	})
	assert.Equal(t, 75.0, out["femaleFamilyLeaveUptake"])
	assert.Nil(t, out["maleFamilyLeaveUptake"])
}
