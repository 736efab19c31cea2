package hook

const (
	// BeforeLevelup carries *LevelupRequest. Handlers may change Modifier or
	// return ErrInterrupt to deny the attempt.
	BeforeLevelup = "before_levelup"
	// AfterLevelup carries LevelupResult.
	AfterLevelup = "after_levelup"
	// OnClanChanged carries ClanChange.
	OnClanChanged = "on_clan_changed"
	// OnAbilityUsed carries AbilityUse.
	OnAbilityUsed = "on_ability_used"
	// OnSwapCompleted carries SwapResult.
	OnSwapCompleted = "on_swap_completed"
	// OnMemberJoin carries the joining user id as int64.
	OnMemberJoin = "on_member_join"
)

type LevelupRequest struct {
	UserID   int64
	Level    int
	Modifier int
}

type LevelupResult struct {
	UserID     int64
	OldLevel   int
	NewLevel   int
	Chance     float64
	Success    bool
	Guaranteed bool
}

type ClanChange struct {
	UserID int64
	From   string
	To     string
	Level  int
}

type AbilityUse struct {
	UserID   int64
	Ability  string
	TargetID int64 // zero when the ability has no target
}

type SwapResult struct {
	ProposalID  string
	InitiatorID int64
	TargetID    int64
	Accepted    bool
	TimedOut    bool
}
