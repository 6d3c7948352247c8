package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/atinyakov/kongtze/internal/models"
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// render substitutes {name} placeholders. It reports the first placeholder
// with no value.
func render(tmpl string, vars map[string]string) (string, string) {
	missing := ""
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	return out, missing
}

func (b *Backend) listTemplates(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("template_type")
	activeOnly := true
	if raw := r.URL.Query().Get("active_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeValidation(w, "query", "active_only", "value could not be parsed to a boolean")
			return
		}
		activeOnly = v
	}

	b.mu.Lock()
	out := []models.PromptTemplate{}
	for _, t := range b.templates {
		if (typ != "" && t.TemplateType != typ) || (activeOnly && !t.IsActive) {
			continue
		}
		out = append(out, *t)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateID < out[j].TemplateID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, found := b.templates[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Prompt template not found")
		return
	}
	writeJSON(w, http.StatusOK, *t)
}

func (b *Backend) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req models.PromptTemplateCreate
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.templates {
		if t.TemplateName == req.TemplateName {
			writeDetail(w, http.StatusBadRequest, "Template with this name already exists")
			return
		}
	}
	t := &models.PromptTemplate{
		TemplateID:     b.nextID(),
		TemplateName:   req.TemplateName,
		TemplateType:   req.TemplateType,
		PromptTemplate: req.PromptTemplate,
		IsActive:       req.IsActive,
	}
	if req.Description != "" {
		d := req.Description
		t.Description = &d
	}
	b.templates[t.TemplateID] = t
	writeJSON(w, http.StatusCreated, *t)
}

func (b *Backend) updateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.PromptTemplateUpdate
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, found := b.templates[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Prompt template not found")
		return
	}
	if req.TemplateName != nil {
		t.TemplateName = *req.TemplateName
	}
	if req.TemplateType != nil {
		t.TemplateType = *req.TemplateType
	}
	if req.PromptTemplate != nil {
		t.PromptTemplate = *req.PromptTemplate
	}
	if req.Description != nil {
		d := *req.Description
		t.Description = &d
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	writeJSON(w, http.StatusOK, *t)
}

func (b *Backend) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, found := b.templates[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Prompt template not found")
		return
	}
	if t.IsSystem {
		writeDetail(w, http.StatusForbidden, "Cannot delete system templates")
		return
	}
	delete(b.templates, id)
	w.WriteHeader(http.StatusNoContent)
}

// previewTemplate takes the variables map itself as the request body.
func (b *Backend) previewTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	vars := map[string]string{}
	if err := json.NewDecoder(r.Body).Decode(&vars); err != nil {
		writeValidation(w, "body", "variables", "value is not a valid dict of strings")
		return
	}
	b.mu.Lock()
	t, found := b.templates[id]
	var tmpl models.PromptTemplate
	if found {
		tmpl = *t
	}
	b.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Prompt template not found")
		return
	}
	rendered, missing := render(tmpl.PromptTemplate, vars)
	if missing != "" {
		writeDetail(w, http.StatusBadRequest, "Missing required variable: '"+missing+"'")
		return
	}
	writeJSON(w, http.StatusOK, models.PromptPreview{
		TemplateID:     tmpl.TemplateID,
		TemplateName:   tmpl.TemplateName,
		RenderedPrompt: rendered,
		VariablesUsed:  vars,
	})
}
