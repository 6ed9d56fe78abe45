package layout

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTemplates 表示没有任何槽位能解析出模板。
	ErrNoTemplates = errors.New("没有任何槽位能解析出模板")
	// ErrNoSlots 表示每页槽位数小于 1。
	ErrNoSlots = errors.New("每页槽位数必须至少为 1")
)

// FieldFormatter 把用户记录按标准字段名格式化为字符串；custom 非空时作为自定义格式覆盖。
type FieldFormatter interface {
	FormatField(standardName string, record map[string]any, custom string) string
}

// Sources 是规划器依赖的只读数据提供者。
type Sources struct {
	Front    *Template
	Back     *Template
	Template func(id string) (*Template, bool)
	Record   func(id string) (Record, bool)
	Mappings func(templateID string) []FieldMapping
	// Formatter 为 nil 时数据库来源的槽位只能得到空字段。
	Formatter FieldFormatter
	// Custom 是 source == "custom" 的槽位使用的字段值。
	Custom CardData
}

// PlanEntry 是某页某槽位的放置结果；Card 为 -1 表示该槽位留空。
type PlanEntry struct {
	Page       int      `json:"page"`
	Slot       int      `json:"slot"`
	Rect       SlotRect `json:"rect"`
	Card       int      `json:"card"`
	Assignment int      `json:"assignment"`
}

// Empty reports whether nothing is placed in this slot.
func (e PlanEntry) Empty() bool { return e.Card < 0 }

// PlannedCard 是一张去重后的待渲染卡片。
type PlannedCard struct {
	Key        string    `json:"key"`
	TemplateID string    `json:"templateId"`
	Side       Side      `json:"side"`
	Data       CardData  `json:"data"`
	Uses       int       `json:"uses"`
	Template   *Template `json:"-"`
}

// Plan 是一次导出的放置计划，构建后只读。
type Plan struct {
	SlotsPerPage int           `json:"slotsPerPage"`
	Pages        int           `json:"pages"`
	Entries      []PlanEntry   `json:"entries"`
	Cards        []PlannedCard `json:"cards"`
	Warnings     []Warning     `json:"warnings,omitempty"`
}

// PageCount = ceil(n / slotsPerPage).
func PageCount(n, slotsPerPage int) int {
	if n <= 0 || slotsPerPage <= 0 {
		return 0
	}
	return (n + slotsPerPage - 1) / slotsPerPage
}

// PageEntries 返回某一页的全部槽位（含空槽位），按槽位顺序。
func (p *Plan) PageEntries(page int) []PlanEntry {
	start := page * p.SlotsPerPage
	if page < 0 || start >= len(p.Entries) {
		return nil
	}
	end := min(start+p.SlotsPerPage, len(p.Entries))
	return p.Entries[start:end]
}

// Filled 返回放置了卡片的槽位数。
func (p *Plan) Filled() int {
	n := 0
	for _, e := range p.Entries {
		if !e.Empty() {
			n++
		}
	}
	return n
}

// BuildPlan 按顺序遍历槽位分配：第 i 个分配落在第 i/slotsPerPage 页的第 i%slotsPerPage 个槽位。
// 无法解析模板或记录的分配只让该槽位留空；相同（模板, 数据）的卡片只渲染一次。
func BuildPlan(assignments []SlotAssignment, slots []SlotRect, src Sources) (*Plan, error) {
	per := len(slots)
	if per < 1 {
		return nil, ErrNoSlots
	}
	pages := PageCount(len(assignments), per)
	plan := &Plan{
		SlotsPerPage: per,
		Pages:        pages,
		Entries:      make([]PlanEntry, 0, pages*per),
	}
	index := map[string]int{}
	// 模板按指针区分：两个 id 相同或为空的不同模板不会被合并
	ordinals := map[*Template]int{}
	mappingWarned := map[*Template]bool{}

	for i := 0; i < pages*per; i++ {
		entry := PlanEntry{Page: i / per, Slot: i % per, Rect: slots[i%per], Card: -1, Assignment: -1}
		if i >= len(assignments) {
			plan.Entries = append(plan.Entries, entry)
			continue
		}
		entry.Assignment = i
		a := assignments[i]

		tpl := src.templateFor(a)
		if tpl == nil {
			plan.warn(entry, WarnTemplateMissing, "分配 %d 没有可用模板（side=%s, templateId=%s）", i, a.Side, a.TemplateID)
			plan.Entries = append(plan.Entries, entry)
			continue
		}

		var data CardData
		if a.Source == SourceCustom || a.Source == "" {
			data = cloneData(src.Custom)
		} else {
			record, ok := src.lookupRecord(a.Source)
			if !ok {
				plan.warn(entry, WarnRecordMissing, "分配 %d 的记录 %s 不存在", i, a.Source)
				plan.Entries = append(plan.Entries, entry)
				continue
			}
			mappings := src.mappingsFor(tpl)
			if len(mappings) == 0 && !mappingWarned[tpl] {
				// 与编辑器行为一致：没有映射时照常输出空白字段
				mappingWarned[tpl] = true
				plan.warn(entry, WarnMappingMissing, "模板 %s 没有字段映射，记录字段将留空", templateKey(tpl))
			}
			data = dataFromRecord(tpl, record, mappings, src.Formatter)
		}

		ord, ok := ordinals[tpl]
		if !ok {
			ord = len(ordinals)
			ordinals[tpl] = ord
		}
		key := fmt.Sprintf("%d:%s|%s", ord, templateKey(tpl), data.Fingerprint())
		idx, seen := index[key]
		if !seen {
			idx = len(plan.Cards)
			index[key] = idx
			plan.Cards = append(plan.Cards, PlannedCard{
				Key:        key,
				TemplateID: templateKey(tpl),
				Side:       sideOf(a),
				Data:       data,
				Template:   tpl,
			})
		}
		plan.Cards[idx].Uses++
		entry.Card = idx
		plan.Entries = append(plan.Entries, entry)
	}

	if len(plan.Cards) == 0 {
		return plan, fmt.Errorf("%w（共 %d 个分配）", ErrNoTemplates, len(assignments))
	}
	return plan, nil
}

func (p *Plan) warn(e PlanEntry, code, format string, args ...any) {
	w := NewWarning(code, format, args...)
	w.Page, w.Slot = e.Page, e.Slot
	p.Warnings = append(p.Warnings, w)
}

func (s Sources) templateFor(a SlotAssignment) *Template {
	if a.TemplateID != "" && s.Template != nil {
		if tpl, ok := s.Template(a.TemplateID); ok && tpl != nil {
			return tpl
		}
	}
	if sideOf(a) == SideBack {
		return s.Back
	}
	return s.Front
}

func (s Sources) lookupRecord(id string) (Record, bool) {
	if s.Record == nil {
		return nil, false
	}
	r, ok := s.Record(id)
	return r, ok && r != nil
}

func (s Sources) mappingsFor(tpl *Template) []FieldMapping {
	if s.Mappings == nil {
		return nil
	}
	return s.Mappings(templateKey(tpl))
}

// dataFromRecord 按映射表把记录转换为卡片数据：记录字段 → 标准字段名 → 格式化值。
func dataFromRecord(tpl *Template, record Record, mappings []FieldMapping, f FieldFormatter) CardData {
	data := CardData{}
	if f == nil {
		return data
	}
	byID := make(map[string]FieldDefinition, len(tpl.Fields))
	for _, fd := range tpl.Fields {
		byID[fd.ID] = fd
	}
	for _, m := range mappings {
		fd, ok := byID[m.FieldID]
		if !ok {
			continue
		}
		v := f.FormatField(m.StandardName, record, m.Custom)
		if fd.Type == FieldImage {
			if v != "" {
				data[fd.ID] = ImageRef(v, 1, 0, 0)
			}
			continue
		}
		data[fd.ID] = TextValue(v)
	}
	return data
}

func cloneData(d CardData) CardData {
	out := make(CardData, len(d))
	for k, v := range d {
		if v.Image != nil {
			img := *v.Image
			v.Image = &img
		}
		out[k] = v
	}
	return out
}

// templateKey 是模板的显示名，仅用于日志、映射查找与文件命名，不参与去重。
func templateKey(t *Template) string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name
}

func sideOf(a SlotAssignment) Side {
	if a.Side == SideBack {
		return SideBack
	}
	return SideFront
}
