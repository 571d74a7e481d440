package wizard

// StepID identifies one step of the listing creation flow.
type StepID string

const (
	// StepCategory selects the top-level category.
	StepCategory StepID = "category"
	// StepSubcategory selects the subcategory within the chosen category.
	StepSubcategory StepID = "subcategory"
	// StepDetails collects title, description, price, location and phone.
	StepDetails StepID = "details"
	// StepCustomFields collects the subcategory's dynamic fields.
	StepCustomFields StepID = "custom-fields"
	// StepImages attaches optional image references.
	StepImages StepID = "images"
	// StepReview is the terminal step; leaving it forward happens only via submission.
	StepReview StepID = "review"
)

// Step carries the navigation flags surfaced to clients. Exactly one step is
// active at a time; every step before the current one is completed.
type Step struct {
	ID          StepID
	Title       string
	Description string
	Completed   bool
	Active      bool
}

// stepTemplate is the fixed six-step sequence instantiated per session.
var stepTemplate = []Step{
	{ID: StepCategory, Title: "Categorie", Description: "Alege categoria anunțului"},
	{ID: StepSubcategory, Title: "Subcategorie", Description: "Alege subcategoria"},
	{ID: StepDetails, Title: "Detalii", Description: "Titlu, descriere, preț și contact"},
	{ID: StepCustomFields, Title: "Caracteristici", Description: "Detalii specifice subcategoriei"},
	{ID: StepImages, Title: "Imagini", Description: "Adaugă fotografii (opțional)"},
	{ID: StepReview, Title: "Verificare", Description: "Verifică și publică anunțul"},
}

// StepCount is the number of steps in the wizard template.
const StepCount = 6

func newSteps() []Step {
	steps := make([]Step, len(stepTemplate))
	copy(steps, stepTemplate)
	steps[0].Active = true
	return steps
}
