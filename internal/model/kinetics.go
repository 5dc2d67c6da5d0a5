package model

// Regulatory interaction types.
const (
	AllostericInhibitor  = "allosteric_inhibitor"
	AllostericActivator  = "allosteric_activator"
	FeedbackInhibitor    = "feedback_inhibitor"
	CompetitiveInhibitor = "competitive_inhibitor"
)

// KineticParam is one measured or curated set of kinetic constants for a reaction.
// Concentrations are in mM, rates in mM/s.
type KineticParam struct {
	ID          string `json:"id"`
	EnzymeID    string `json:"enzyme_id,omitempty"`
	ReactionID  string `json:"reaction_id,omitempty"`
	SubstrateID string `json:"substrate_id,omitempty"`

	Km                  *float64 `json:"km,omitempty"`
	Kcat                *float64 `json:"kcat,omitempty"`
	Vmax                *float64 `json:"vmax,omitempty"`
	Ki                  *float64 `json:"ki,omitempty"`
	HillCoefficient     *float64 `json:"hill_coefficient,omitempty"`
	DeltaGPrime         *float64 `json:"delta_g_prime,omitempty"`
	EquilibriumConstant *float64 `json:"equilibrium_constant,omitempty"`

	// Measurement conditions
	PH                 *float64 `json:"ph,omitempty"`
	TemperatureCelsius *float64 `json:"temperature_celsius,omitempty"`
	IonicStrength      *float64 `json:"ionic_strength,omitempty"`

	// Provenance
	SourceDatabase      string   `json:"source_database,omitempty"`
	LiteratureReference string   `json:"literature_reference,omitempty"`
	Organism            string   `json:"organism,omitempty"`
	Tissue              string   `json:"tissue,omitempty"`
	ConfidenceScore     *float64 `json:"confidence_score,omitempty"`
	MeasurementError    *float64 `json:"measurement_error,omitempty"`
}

// AssignID sets ID from the defining fields when it is empty.
func (k *KineticParam) AssignID() {
	if k.ID == "" {
		k.ID = KineticParamID(k.EnzymeID, k.ReactionID, k.SubstrateID, k.SourceDatabase)
	}
}

// RegulatoryInteraction is an allosteric or feedback rule acting on an enzyme.
type RegulatoryInteraction struct {
	ID                  string   `json:"id"`
	EnzymeID            string   `json:"enzyme_id"`
	CompoundID          string   `json:"compound_id"`
	InteractionType     string   `json:"interaction_type"`
	KiAllosteric        *float64 `json:"ki_allosteric,omitempty"`
	HillCoefficient     *float64 `json:"hill_coefficient,omitempty"`
	Site                string   `json:"site,omitempty"`
	SourceDatabase      string   `json:"source_database,omitempty"`
	LiteratureReference string   `json:"literature_reference,omitempty"`
}

// AssignID sets ID from the defining fields when it is empty.
func (r *RegulatoryInteraction) AssignID() {
	if r.ID == "" {
		r.ID = RegulatoryID(r.EnzymeID, r.CompoundID, r.InteractionType)
	}
}

// Activates reports whether the interaction increases enzyme activity.
func (r *RegulatoryInteraction) Activates() bool {
	return r.InteractionType == AllostericActivator
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
