package model

import (
	"html/template"
	"time"
)

// DefaultBlockIcon bootstrap-icons 图标名
const DefaultBlockIcon = "file-earmark-text"

// DynamicBlock 管理员发布的仪表盘内容块，Content 为模板源码，在请求时渲染
type DynamicBlock struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Type      string    `json:"type" gorm:"size:50;not null"`
	Icon      string    `json:"icon" gorm:"size:100;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (DynamicBlock) TableName() string {
	return "dynamic_blocks"
}

// BlockRequest 创建/编辑内容块请求
type BlockRequest struct {
	Title   string
	Content string
	Type    string
	Icon    string
}

// NewDynamicBlock 创建新内容块
func NewDynamicBlock(req BlockRequest) *DynamicBlock {
	b := &DynamicBlock{}
	b.Apply(req)
	return b
}

// Apply copies the request onto the block, defaulting the icon.
func (b *DynamicBlock) Apply(req BlockRequest) {
	b.Title = req.Title
	b.Content = req.Content
	b.Type = req.Type
	b.Icon = req.Icon
	if b.Icon == "" {
		b.Icon = DefaultBlockIcon
	}
}

// RenderedBlock 渲染后的内容块（不存储在数据库中）
type RenderedBlock struct {
	ID          int64
	Title       string
	Icon        string
	Type        string
	HTML        template.HTML
	Raw         string
	RenderError string
	CreatedAt   time.Time
}
