package cms

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postViews = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gaggle_post_views_total",
	Help: "Total number of recorded post views",
})

var scheduledPublishes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gaggle_scheduled_publishes_total",
	Help: "Total number of scheduled posts moved to published",
})

var imageUploads = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gaggle_image_uploads_total",
	Help: "Total number of images uploaded",
})

var themesGenerated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gaggle_themes_generated_total",
	Help: "Total number of themes produced by the generator",
})
