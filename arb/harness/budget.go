package harness

// ActionBudget caps dispatched tool invocations per run. The controller
// gates command-running actions on Exhausted before spending, so executed
// actions never exceed the maximum; only a terminal submission may spend
// past it.
type ActionBudget struct {
	max   int
	spent int
}

func NewActionBudget(max int) *ActionBudget { return &ActionBudget{max: max} }

func (b *ActionBudget) Spend()          { b.spent++ }
func (b *ActionBudget) Spent() int      { return b.spent }
func (b *ActionBudget) Remaining() int  { return b.max - b.spent }
func (b *ActionBudget) Exhausted() bool { return b.spent >= b.max }
func (b *ActionBudget) Max() int        { return b.max }
