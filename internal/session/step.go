package session

import (
	"github.com/BTreeMap/CalCounter/internal/goals"
	"github.com/BTreeMap/CalCounter/internal/models"
)

// StepName identifies the question a user is currently expected to answer.
type StepName string

const (
	StepConfigWeight       StepName = "config_peso"
	StepConfigHeight       StepName = "config_altura"
	StepConfigAge          StepName = "config_edad"
	StepConfigSex          StepName = "config_sexo"
	StepConfigActivity     StepName = "config_actividad"
	StepConfigGoal         StepName = "config_objetivo"
	StepConfigTargetWeight StepName = "config_peso_meta"
	StepConfigDeficitTier  StepName = "config_nivel_deficit"
	StepConfigSurplusTier  StepName = "config_nivel_superavit"
	StepConfigWeekendPlan  StepName = "config_plan_finde"
	StepGoalsCalories      StepName = "metas_calorias"
	StepGoalsProtein       StepName = "metas_proteinas"
	StepGoalsCarbs         StepName = "metas_carbohidratos"
	StepGoalsFat           StepName = "metas_grasas"
	StepLogWeight          StepName = "peso"
	StepExerciseName       StepName = "ejercicio_nombre"
	StepExerciseCalories   StepName = "ejercicio_calorias"
	StepConsult            StepName = "consultar"
)

// Step is a flow stage. Each implementation carries exactly the fields that are
// known at that stage, so a later stage cannot exist without its inputs.
type Step interface {
	Name() StepName
	step()
}

// ConfigWeight asks for the current body weight.
type ConfigWeight struct{}

// ConfigHeight asks for height once weight is known.
type ConfigHeight struct{ Weight float64 }

// ConfigAge asks for age once weight and height are known.
type ConfigAge struct {
	Weight float64
	Height float64
}

// ConfigSex waits for the sex button.
type ConfigSex struct{ Body goals.Body }

// ConfigActivity waits for the activity button.
type ConfigActivity struct {
	Body goals.Body
	Sex  models.Sex
}

// ConfigGoal waits for the goal button.
type ConfigGoal struct{ Person goals.Person }

// ConfigTargetWeight asks for the target weight of a deficit or surplus goal.
type ConfigTargetWeight struct {
	Person goals.Person
	Goal   models.Goal
}

// ConfigDeficitTier waits for the deficit tier button.
type ConfigDeficitTier struct {
	Person       goals.Person
	TargetWeight float64
}

// ConfigSurplusTier waits for the surplus tier button.
type ConfigSurplusTier struct {
	Person       goals.Person
	TargetWeight float64
}

// ConfigWeekendPlan waits for the weekend plan button. TargetWeight and Tier are
// zero for the maintain goal.
type ConfigWeekendPlan struct {
	Person       goals.Person
	Goal         models.Goal
	TargetWeight float64
	Tier         goals.Tier
}

// GoalsCalories asks for the manual daily calorie goal.
type GoalsCalories struct{}

// GoalsProtein asks for the protein goal.
type GoalsProtein struct{ Calories int }

// GoalsCarbs asks for the carbohydrate goal.
type GoalsCarbs struct {
	Calories int
	Protein  int
}

// GoalsFat asks for the fat goal, the last manual goal.
type GoalsFat struct {
	Calories int
	Protein  int
	Carbs    int
}

// LogWeight asks for a weight measurement.
type LogWeight struct{}

// ExerciseName asks which exercise was done.
type ExerciseName struct{}

// ExerciseCalories asks how many calories the named exercise burned.
type ExerciseCalories struct{ Exercise string }

// Consult asks for a food to look up without logging it.
type Consult struct{}

func (ConfigWeight) Name() StepName       { return StepConfigWeight }
func (ConfigHeight) Name() StepName       { return StepConfigHeight }
func (ConfigAge) Name() StepName          { return StepConfigAge }
func (ConfigSex) Name() StepName          { return StepConfigSex }
func (ConfigActivity) Name() StepName     { return StepConfigActivity }
func (ConfigGoal) Name() StepName         { return StepConfigGoal }
func (ConfigTargetWeight) Name() StepName { return StepConfigTargetWeight }
func (ConfigDeficitTier) Name() StepName  { return StepConfigDeficitTier }
func (ConfigSurplusTier) Name() StepName  { return StepConfigSurplusTier }
func (ConfigWeekendPlan) Name() StepName  { return StepConfigWeekendPlan }
func (GoalsCalories) Name() StepName      { return StepGoalsCalories }
func (GoalsProtein) Name() StepName       { return StepGoalsProtein }
func (GoalsCarbs) Name() StepName         { return StepGoalsCarbs }
func (GoalsFat) Name() StepName           { return StepGoalsFat }
func (LogWeight) Name() StepName          { return StepLogWeight }
func (ExerciseName) Name() StepName       { return StepExerciseName }
func (ExerciseCalories) Name() StepName   { return StepExerciseCalories }
func (Consult) Name() StepName            { return StepConsult }

func (ConfigWeight) step()       {}
func (ConfigHeight) step()       {}
func (ConfigAge) step()          {}
func (ConfigSex) step()          {}
func (ConfigActivity) step()     {}
func (ConfigGoal) step()         {}
func (ConfigTargetWeight) step() {}
func (ConfigDeficitTier) step()  {}
func (ConfigSurplusTier) step()  {}
func (ConfigWeekendPlan) step()  {}
func (GoalsCalories) step()      {}
func (GoalsProtein) step()       {}
func (GoalsCarbs) step()         {}
func (GoalsFat) step()           {}
func (LogWeight) step()          {}
func (ExerciseName) step()       {}
func (ExerciseCalories) step()   {}
func (Consult) step()            {}
