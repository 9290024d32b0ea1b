package server

import (
	"fmt"
	"net/http"
	"strings"

	"dabeat/logger"
	"dabeat/model"
	"dabeat/web"
)

// blockForm reads the admin block form. Title, content and type are required.
func blockForm(r *http.Request) (model.BlockRequest, bool) {
	if err := r.ParseForm(); err != nil {
		return model.BlockRequest{}, false
	}
	req := model.BlockRequest{
		Title:   strings.TrimSpace(r.PostFormValue("title")),
		Content: r.PostFormValue("content"),
		Type:    strings.TrimSpace(r.PostFormValue("type")),
		Icon:    strings.TrimSpace(r.PostFormValue("bs_icon")),
	}
	ok := req.Title != "" && strings.TrimSpace(req.Content) != "" && req.Type != ""
	return req, ok
}

// CreateBlockHandler 创建内容块
func (h *Handler) CreateBlockHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := blockForm(r)
	if !ok {
		logger.Warn("[Blocks] 创建内容块参数不完整")
		redirectWith(w, r, "/dashboard", "error2", "Create failed")
		return
	}

	block := model.NewDynamicBlock(req)
	if err := h.blocks.CreateBlock(r.Context(), block); err != nil {
		logger.Error("[Blocks] 创建内容块失败", logger.ErrorField(err))
		redirectWith(w, r, "/dashboard", "error2", "Create failed")
		return
	}

	logger.Info("[Blocks] 内容块已创建",
		logger.Int64("blockId", block.ID),
		logger.String("admin", viewerFrom(r).Username))
	redirectWith(w, r, "/dashboard", "success2", "Post created")
}

// UpdateBlockHandler 更新内容块
func (h *Handler) UpdateBlockHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		redirectWith(w, r, "/dashboard", "error2", "Update failed")
		return
	}
	req, ok := blockForm(r)
	if !ok {
		logger.Warn("[Blocks] 更新内容块参数不完整", logger.Int64("blockId", id))
		redirectWith(w, r, "/dashboard", "error2", "Update failed")
		return
	}

	block, err := h.blocks.GetBlockByID(r.Context(), id)
	if err != nil || block == nil {
		if err != nil {
			logger.Error("[Blocks] 查询内容块失败", logger.Int64("blockId", id), logger.ErrorField(err))
		}
		redirectWith(w, r, "/dashboard", "error2", "Update failed")
		return
	}

	block.Apply(req)
	if err := h.blocks.UpdateBlock(r.Context(), block); err != nil {
		logger.Error("[Blocks] 更新内容块失败", logger.Int64("blockId", id), logger.ErrorField(err))
		redirectWith(w, r, "/dashboard", "error2", "Update failed")
		return
	}

	logger.Info("[Blocks] 内容块已更新", logger.Int64("blockId", id))
	redirectWith(w, r, "/dashboard", "success2", "Post updated")
}

// DeleteBlockHandler 删除内容块
func (h *Handler) DeleteBlockHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		redirectWith(w, r, "/dashboard", "error2", "Delete failed")
		return
	}

	deleted, err := h.blocks.DeleteBlock(r.Context(), id)
	if err != nil || !deleted {
		if err != nil {
			logger.Error("[Blocks] 删除内容块失败", logger.Int64("blockId", id), logger.ErrorField(err))
		}
		redirectWith(w, r, "/dashboard", "error2", "Delete failed")
		return
	}

	logger.Info("[Blocks] 内容块已删除", logger.Int64("blockId", id))
	redirectWith(w, r, "/dashboard", "success2", "Post deleted")
}

// renderBlocks executes every block for user in creation order. A block that fails
// to parse or execute is shown with its error instead of breaking the page.
func (h *Handler) renderBlocks(r *http.Request, user *model.User) []model.RenderedBlock {
	blocks, err := h.blocks.ListBlocks(r.Context())
	if err != nil {
		logger.Error("[Blocks] 获取内容块失败", logger.ErrorField(err))
		return nil
	}
	if len(blocks) == 0 {
		return nil
	}

	data := blockData{User: user, TrackCount: h.trackCount(r)}
	out := make([]model.RenderedBlock, 0, len(blocks))
	for _, b := range blocks {
		rb := model.RenderedBlock{
			ID:        b.ID,
			Title:     b.Title,
			Icon:      b.Icon,
			Type:      b.Type,
			Raw:       b.Content,
			CreatedAt: b.CreatedAt,
		}
		html, err := web.RenderBlock(fmt.Sprintf("block-%d", b.ID), b.Content, data)
		if err != nil {
			logger.Warn("[Blocks] 内容块渲染失败", logger.Int64("blockId", b.ID), logger.ErrorField(err))
			rb.RenderError = err.Error()
		} else {
			rb.HTML = html
		}
		out = append(out, rb)
	}
	return out
}
