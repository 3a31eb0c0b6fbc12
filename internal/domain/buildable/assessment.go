package buildable

// Assessment is the outcome of checking one parcel for development
// potential. BuildableArea is set only for an empty parcel.
type Assessment struct {
	ParcelID       string   `json:"parcelId"`
	Address        string   `json:"address,omitempty"`
	ZoningCode     string   `json:"zoningCode,omitempty"`
	IsEmpty        bool     `json:"isEmpty"`
	StructureCount int      `json:"structureCount"`
	BuildableArea  *Report  `json:"buildableArea"`
	Warnings       []string `json:"warnings,omitempty"`
	// Error is set when the parcel could not be assessed; the other
	// fields beyond ParcelID and Address are then unset.
	Error string `json:"error,omitempty"`
}

// Warning texts attached to an assessment.
const (
	WarnFARInvalid        = "floor area ratio is not a number; maxBuildableArea is unknown"
	WarnFootprintNegative = "setbacks exceed the lot; buildable footprint is negative"
	WarnLotAreaFromShape  = "lot area computed from parcel geometry"
	WarnMultipleZonings   = "parcel has several zoning designations; the first was used"
)

// Warnings lists the caveats a report carries.
func Warnings(r *Report) []string {
	if r == nil {
		return nil
	}
	var out []string
	if !r.FARValid() {
		out = append(out, WarnFARInvalid)
	}
	if r.FootprintExceedsLot() {
		out = append(out, WarnFootprintNegative)
	}
	return out
}
