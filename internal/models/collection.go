package models

import "encoding/json"

// 目录集合名称
const (
	CollectionSchedule = "schedule"
	CollectionSounds   = "sounds"
	CollectionUsers    = "users"
)

// ChangeOp 集合变更类型
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// CollectionChange 目录集合变更通知
type CollectionChange struct {
	Collection string          `json:"collection"`
	Op         ChangeOp        `json:"op"`
	ID         string          `json:"id"`
	Fields     json.RawMessage `json:"fields,omitempty"`
	At         int64           `json:"at"`
}
