package reconcile

import "go.uber.org/zap/zapcore"

const (
	RepairColumnOrder = "column_order"
	RepairCardOrder   = "card_order"
	RepairOrphanCard  = "orphan_card"
	RepairMember      = "member"
)

// Report counts the repairs applied by a run. Order repairs count entries
// dropped plus entries appended.
type Report struct {
	BoardsScanned      int  `json:"boardsScanned"`
	BoardsRepaired     int  `json:"boardsRepaired"`
	ColumnOrderRepairs int  `json:"columnOrderRepairs"`
	CardOrderRepairs   int  `json:"cardOrderRepairs"`
	OrphanCards        int  `json:"orphanCardsDestroyed"`
	MembersAdded       int  `json:"membersAdded"`
	Skipped            bool `json:"skipped,omitempty"`
}

func (r *Report) Total() int {
	return r.ColumnOrderRepairs + r.CardOrderRepairs + r.OrphanCards + r.MembersAdded
}

func (r *Report) merge(other *Report) {
	if other == nil {
		return
	}
	r.BoardsScanned += other.BoardsScanned
	r.BoardsRepaired += other.BoardsRepaired
	r.ColumnOrderRepairs += other.ColumnOrderRepairs
	r.CardOrderRepairs += other.CardOrderRepairs
	r.OrphanCards += other.OrphanCards
	r.MembersAdded += other.MembersAdded
}

func (r *Report) byKind() map[string]int {
	return map[string]int{
		RepairColumnOrder: r.ColumnOrderRepairs,
		RepairCardOrder:   r.CardOrderRepairs,
		RepairOrphanCard:  r.OrphanCards,
		RepairMember:      r.MembersAdded,
	}
}

func (r *Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("boards_scanned", r.BoardsScanned)
	enc.AddInt("boards_repaired", r.BoardsRepaired)
	enc.AddInt("column_order_repairs", r.ColumnOrderRepairs)
	enc.AddInt("card_order_repairs", r.CardOrderRepairs)
	enc.AddInt("orphan_cards", r.OrphanCards)
	enc.AddInt("members_added", r.MembersAdded)
	return nil
}
