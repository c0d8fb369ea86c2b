package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"streamhub/internal/manager"
	"streamhub/internal/reporter"
	"streamhub/sink"
)

func (s *Server) createConsumer(c *gin.Context) {
	var spec manager.CreateSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	view, err := s.mgr.Create(c.Request.Context(), spec)
	if err != nil {
		if sink.IsConfigError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) listConsumers(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.List())
}

func (s *Server) getConsumer(c *gin.Context) {
	view, err := s.mgr.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "consumer not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateConsumer(c *gin.Context) {
	var spec manager.UpdateSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	view, err := s.mgr.Update(c.Request.Context(), c.Param("id"), spec)
	if err != nil {
		s.writeManagerError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteConsumer(c *gin.Context) {
	ok, err := s.mgr.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "consumer not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) startConsumer(c *gin.Context) {
	view, err := s.mgr.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeManagerError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) stopConsumer(c *gin.Context) {
	view, err := s.mgr.Stop(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeManagerError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) writeManagerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, manager.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "consumer not found"})
	case sink.IsConfigError(err):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}

func (s *Server) listGroups(c *gin.Context) {
	if c.Query("all") == "true" {
		groups, err := s.rep.ListAllGroups(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"consumer_groups": groups})
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumer_groups": s.rep.ListLocalGroups()})
}

func (s *Server) groupOffsets(c *gin.Context) {
	group := c.Param("group")
	offsets, err := s.rep.GetGroupOffsets(c.Request.Context(), group)
	if err != nil {
		if errors.Is(err, reporter.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "consumer group '" + group + "' not found or no offsets committed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": group, "offsets": offsets})
}

func (s *Server) groupLag(c *gin.Context) {
	group := c.Query("group")
	topic := c.Query("topic")
	if group == "" || topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "group and topic query parameters are required"})
		return
	}
	lag, err := s.rep.GetGroupLag(c.Request.Context(), group, topic)
	if err != nil {
		if errors.Is(err, reporter.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "consumer group '" + group + "' has no committed offsets for topic '" + topic + "'"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lag)
}
