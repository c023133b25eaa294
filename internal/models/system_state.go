package models

// DefaultVolume 文档首次创建时的音量
const DefaultVolume = 50

// SystemState 共享系统状态（system_meta/settings，全局唯一）
type SystemState struct {
	Volume               int    `json:"volume"`
	ActiveControllerID   string `json:"active_controller_id,omitempty"`
	ActiveControllerName string `json:"active_controller_name,omitempty"`
	ControllerAcquiredAt int64  `json:"controller_acquired_at,omitempty"` // 毫秒时间戳，租约起点
	AnnouncementURL      string `json:"announcement_url,omitempty"`
	AnnouncementSeq      int64  `json:"announcement_seq"`
	StopEpoch            int64  `json:"stop_epoch"`
	LastTriggeredBell    string `json:"last_triggered_bell,omitempty"`
	LastTriggeredAt      int64  `json:"last_triggered_at,omitempty"` // 毫秒时间戳，写入去重标记的时间
	Rev                  int64  `json:"rev"` // 每次提交递增
}

// ControllerLease 控制权租约（ID 与 Name 必须同时设置/清除）
type ControllerLease struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AcquiredAt int64  `json:"acquired_at"`
}

// Announcement 公告（Seq 单调递增，是站点播放的触发条件）
type Announcement struct {
	URL string `json:"url"`
	Seq int64  `json:"seq"`
}

// StatePatch 部分合并更新，nil 字段表示未修改
type StatePatch struct {
	Volume            *int             `json:"volume,omitempty"`
	Controller        *ControllerLease `json:"controller,omitempty"`
	Announcement      *Announcement    `json:"announcement,omitempty"`
	StopEpoch         *int64           `json:"stop_epoch,omitempty"`
	LastTriggeredBell *string          `json:"last_triggered_bell,omitempty"`
	LastTriggeredAt   *int64           `json:"last_triggered_at,omitempty"`
}

// ChangeEvent 已提交的变更（按 Rev 顺序投递）
type ChangeEvent struct {
	Rev   int64      `json:"rev"`
	Patch StatePatch `json:"patch"`
	At    int64      `json:"at"`
}

// DefaultSystemState 文档不存在时的初始值
func DefaultSystemState() SystemState {
	return SystemState{Volume: DefaultVolume}
}

// Controlled 是否有客户端持有控制权
func (s SystemState) Controlled() bool {
	return s.ActiveControllerID != ""
}

// Lease 当前控制权租约
func (s SystemState) Lease() ControllerLease {
	return ControllerLease{
		ID:         s.ActiveControllerID,
		Name:       s.ActiveControllerName,
		AcquiredAt: s.ControllerAcquiredAt,
	}
}

// Apply 将变更合并到本地视图
func (s *SystemState) Apply(p StatePatch) {
	if p.Volume != nil {
		s.Volume = *p.Volume
	}
	if p.Controller != nil {
		s.ActiveControllerID = p.Controller.ID
		s.ActiveControllerName = p.Controller.Name
		s.ControllerAcquiredAt = p.Controller.AcquiredAt
		if s.ActiveControllerID == "" {
			s.ActiveControllerName = ""
			s.ControllerAcquiredAt = 0
		}
	}
	if p.Announcement != nil && p.Announcement.Seq > s.AnnouncementSeq {
		s.AnnouncementURL = p.Announcement.URL
		s.AnnouncementSeq = p.Announcement.Seq
	}
	if p.StopEpoch != nil && *p.StopEpoch > s.StopEpoch {
		s.StopEpoch = *p.StopEpoch
	}
	if p.LastTriggeredBell != nil {
		s.LastTriggeredBell = *p.LastTriggeredBell
	}
	if p.LastTriggeredAt != nil {
		s.LastTriggeredAt = *p.LastTriggeredAt
	}
}

// Empty 补丁是否没有任何字段
func (p StatePatch) Empty() bool {
	return p.Volume == nil && p.Controller == nil && p.Announcement == nil &&
		p.StopEpoch == nil && p.LastTriggeredBell == nil && p.LastTriggeredAt == nil
}
