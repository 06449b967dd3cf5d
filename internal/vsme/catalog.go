// Package vsme declares the report sections of the VSME sustainability
// standard handled by vsmecore: their fields, initial shapes and derived-field
// rules.
//
// Zero-denominator conventions are chosen per field: percentage-of-total
// metrics read 0 when the total is 0, ratios and gaps stay undefined (nil)
// when their denominator is missing or 0.
package vsme

import (
	"sort"

	"vsmecore/pkg/domain"
)

// Collection names. They double as backend table keys.
const (
	BasisForPreparation   = "b1_basis_for_preparation"
	EnergyEmissions       = "b3_energy_emissions"
	Water                 = "b6_water"
	Waste                 = "b7_waste"
	Workforce             = "b8_workforce"
	Apprentices           = "b8_apprentices"
	HealthSafety          = "b9_health_safety"
	Remuneration          = "b10_remuneration"
	Conduct               = "b11_conduct"
	SectorRevenue         = "bp1_sector_revenue"
	GovernanceDiversity   = "bp2_governance_diversity"
	EmissionTargets       = "bp3_ghg_reduction_targets"
	WorkLifeBalance       = "bp10_work_life_balance"
	WageRatio             = "c5_wage_ratio"
	GovernanceNarrative   = "c9_governance_narrative"
	accidentRateHoursBase = 200000
)

var catalog = []domain.Section{
	{
		Collection: BasisForPreparation,
		Title:      "B1 Basis for preparation",
		Schema: domain.Schema{
			domain.Number("reportingYear"),
			domain.Text("legalForm"),
			domain.Text("naceCode"),
			domain.Number("balanceSheetTotal"),
			domain.Number("turnover"),
			domain.Text("countryOfOperations"),
			domain.Bool("consolidatedBasis"),
			domain.Bool("hasSustainabilityCertification"),
			domain.Text("certificationDescription"),
		},
		Initial: domain.Fields{
			"consolidatedBasis":              false,
			"hasSustainabilityCertification": false,
		},
	},
	{
		Collection: EnergyEmissions,
		Title:      "B3 Energy and greenhouse gas emissions",
		Schema: domain.Schema{
			domain.Number("renewableElectricityMwh"),
			domain.Number("nonRenewableElectricityMwh"),
			domain.Number("fuelsMwh"),
			domain.Computed("totalEnergyMwh"),
			domain.Computed("renewableSharePercentage"),
			domain.Number("scope1Emissions"),
			domain.Number("scope2LocationEmissions"),
			domain.Number("scope2MarketEmissions"),
			domain.Computed("totalGhgEmissions"),
			domain.Number("turnover"),
			domain.Computed("ghgIntensity"),
		},
		Rules: []domain.Rule{
			domain.Sum("totalEnergyMwh", "renewableElectricityMwh", "nonRenewableElectricityMwh", "fuelsMwh"),
			domain.PercentOfTotal("renewableSharePercentage", "renewableElectricityMwh",
				"renewableElectricityMwh", "nonRenewableElectricityMwh", "fuelsMwh"),
			domain.Sum("totalGhgEmissions", "scope1Emissions", "scope2LocationEmissions"),
			domain.Ratio("ghgIntensity", "totalGhgEmissions", "turnover", 1),
		},
	},
	{
		Collection: Water,
		Title:      "B6 Water",
		Schema: domain.Schema{
			domain.Number("waterWithdrawalM3"),
			domain.Number("highWaterStressWithdrawalM3"),
			domain.Computed("highWaterStressShare"),
			domain.Number("waterConsumptionM3"),
		},
		Rules: []domain.Rule{
			domain.PercentOfTotal("highWaterStressShare", "highWaterStressWithdrawalM3", "waterWithdrawalM3"),
		},
	},
	{
		Collection: Waste,
		Title:      "B7 Resource use, circular economy and waste",
		Schema: domain.Schema{
			domain.Number("hazardousWasteTonnes"),
			domain.Number("nonHazardousWasteTonnes"),
			domain.Computed("totalWasteTonnes"),
			domain.Number("recycledWasteTonnes"),
			domain.Computed("recyclingRate"),
			domain.Text("circularEconomyPractices"),
		},
		Rules: []domain.Rule{
			domain.Sum("totalWasteTonnes", "hazardousWasteTonnes", "nonHazardousWasteTonnes"),
			domain.PercentOfTotal("recyclingRate", "recycledWasteTonnes", "hazardousWasteTonnes", "nonHazardousWasteTonnes"),
		},
	},
	{
		Collection: Workforce,
		Title:      "B8 Workforce general characteristics",
		Schema: domain.Schema{
			domain.Number("maleEmployees"),
			domain.Number("femaleEmployees"),
			domain.Number("otherGenderEmployees"),
			domain.Computed("totalEmployees"),
			domain.Computed("femaleEmployeePercentage"),
			domain.Number("permanentEmployees"),
			domain.Number("temporaryEmployees"),
			domain.Number("employeesLeft"),
			domain.Computed("employeeTurnoverRate"),
			domain.Text("countryBreakdown"),
		},
		Rules: []domain.Rule{
			domain.Sum("totalEmployees", "maleEmployees", "femaleEmployees", "otherGenderEmployees"),
			domain.PercentOfTotal("femaleEmployeePercentage", "femaleEmployees",
				"maleEmployees", "femaleEmployees", "otherGenderEmployees"),
			domain.Ratio("employeeTurnoverRate", "employeesLeft", "totalEmployees", 100),
		},
	},
	{
		Collection: Apprentices,
		Title:      "B8 Apprentices",
		Schema: domain.Schema{
			domain.Number("apprentices"),
			domain.Number("totalEmployees"),
			domain.Computed("apprenticePercentage"),
		},
		Rules: []domain.Rule{
			domain.PercentOfTotal("apprenticePercentage", "apprentices", "totalEmployees"),
		},
	},
	{
		Collection: HealthSafety,
		Title:      "B9 Workforce health and safety",
		Schema: domain.Schema{
			domain.Number("recordableAccidents"),
			domain.Number("hoursWorked"),
			domain.Computed("accidentRate"),
			domain.Number("fatalities"),
			domain.Bool("hasSafetyManagementSystem"),
		},
		Initial: domain.Fields{"hasSafetyManagementSystem": false},
		Rules: []domain.Rule{
			domain.Ratio("accidentRate", "recordableAccidents", "hoursWorked", accidentRateHoursBase),
		},
	},
	{
		Collection: Remuneration,
		Title:      "B10 Remuneration, collective bargaining and training",
		Schema: domain.Schema{
			domain.Bool("paysAtLeastMinimumWage"),
			domain.Number("averageMaleGrossHourlyPay"),
			domain.Number("averageFemaleGrossHourlyPay"),
			domain.Computed("genderPayGap"),
			domain.Number("collectiveBargainingCoverage"),
			domain.Number("trainingHoursMale"),
			domain.Number("trainingHoursFemale"),
		},
		Initial: domain.Fields{"paysAtLeastMinimumWage": false},
		Rules: []domain.Rule{
			domain.PercentGap("genderPayGap", "averageMaleGrossHourlyPay", "averageFemaleGrossHourlyPay"),
		},
	},
	{
		Collection: Conduct,
		Title:      "B11 Convictions and fines for corruption and bribery",
		Schema: domain.Schema{
			domain.Bool("hasCodeOfConduct"),
			domain.Number("convictionsCount"),
			domain.Number("finesAmount"),
			domain.Text("conductNarrative"),
		},
		Initial: domain.Fields{"hasCodeOfConduct": false},
	},
	{
		Collection: SectorRevenue,
		Title:      "BP1 Revenues in certain sectors",
		Schema: domain.Schema{
			domain.Bool("activeInFossilFuelSector"),
			domain.Number("coalRevenue"),
			domain.Number("oilRevenue"),
			domain.Number("gasRevenue"),
			domain.Computed("fossilFuelRevenue"),
			domain.Bool("activeInControversialWeapons"),
			domain.Number("controversialWeaponsRevenue"),
			domain.Bool("activeInTobacco"),
			domain.Number("tobaccoRevenue"),
		},
		Initial: domain.Fields{
			"activeInFossilFuelSector":     false,
			"activeInControversialWeapons": false,
			"activeInTobacco":              false,
		},
		Rules: []domain.Rule{
			domain.Sum("fossilFuelRevenue", "coalRevenue", "oilRevenue", "gasRevenue"),
		},
	},
	{
		Collection: GovernanceDiversity,
		Title:      "BP2 Gender diversity in the governance body",
		Schema: domain.Schema{
			domain.Number("femaleGovernanceMembers"),
			domain.Number("maleGovernanceMembers"),
			domain.Number("otherGenderGovernanceMembers"),
			domain.Computed("genderDiversityIndex"),
		},
		Rules: []domain.Rule{
			domain.PercentOfTotal("genderDiversityIndex", "femaleGovernanceMembers",
				"femaleGovernanceMembers", "maleGovernanceMembers", "otherGenderGovernanceMembers"),
		},
	},
	{
		Collection: EmissionTargets,
		Title:      "BP3 GHG emissions reduction targets",
		Schema: domain.Schema{
			domain.Bool("hasReductionTargets"),
			domain.Number("baseYear"),
			domain.Number("baseYearEmissions"),
			domain.Number("targetYear"),
			domain.Number("targetYearEmissions"),
			domain.Computed("targetReductionPercentage"),
			domain.Text("decarbonisationLevers"),
		},
		Initial: domain.Fields{"hasReductionTargets": false},
		Rules: []domain.Rule{
			domain.PercentGap("targetReductionPercentage", "baseYearEmissions", "targetYearEmissions"),
		},
	},
	{
		Collection: WorkLifeBalance,
		Title:      "BP10 Work-life balance",
		Schema: domain.Schema{
			domain.Number("femaleEntitledToFamilyLeave"),
			domain.Number("maleEntitledToFamilyLeave"),
			domain.Number("femaleTookFamilyLeave"),
			domain.Number("maleTookFamilyLeave"),
			domain.Computed("femaleFamilyLeaveUptake"),
			domain.Computed("maleFamilyLeaveUptake"),
		},
		Rules: []domain.Rule{
			domain.Ratio("femaleFamilyLeaveUptake", "femaleTookFamilyLeave", "femaleEntitledToFamilyLeave", 100),
			domain.Ratio("maleFamilyLeaveUptake", "maleTookFamilyLeave", "maleEntitledToFamilyLeave", 100),
		},
	},
	{
		Collection: WageRatio,
		Title:      "C5 Annual total remuneration ratio",
		Schema: domain.Schema{
			domain.Number("highestPaidRemuneration"),
			domain.Number("medianRemuneration"),
			domain.Computed("annualTotalRemunerationRatio"),
		},
		Rules: []domain.Rule{
			domain.Ratio("annualTotalRemunerationRatio", "highestPaidRemuneration", "medianRemuneration", 1),
		},
	},
	{
		Collection: GovernanceNarrative,
		Title:      "C9 Governance narrative",
		Schema: domain.Schema{
			domain.Text("governanceStructure"),
			domain.Text("sustainabilityOversight"),
			domain.Text("riskManagement"),
			domain.Bool("hasWhistleblowingChannel"),
		},
		Initial: domain.Fields{"hasWhistleblowingChannel": false},
	},
}

// Sections returns every section definition in report order.
func Sections() []domain.Section {
	return append([]domain.Section(nil), catalog...)
}

// Lookup returns the section stored in collection.
func Lookup(collection string) (domain.Section, bool) {
	for _, s := range catalog {
		if s.Collection == collection {
			return s, true
		}
	}
	return domain.Section{}, false
}

// Collections returns the collection names in sorted order.
func Collections() []string {
	out := make([]string, 0, len(catalog))
	for _, s := range catalog {
		out = append(out, s.Collection)
	}
	sort.Strings(out)
	return out
}
