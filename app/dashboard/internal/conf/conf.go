package conf

type Bootstrap struct {
	Server *Server
	Radar  *Radar
}

type Server struct {
	Http *HTTP
}

type HTTP struct {
	Addr    string
	Timeout string
}

// Radar 评论雷达引擎配置，Config 指向 review_radar 的 yaml 配置文件
type Radar struct {
	Config string `json:"config"`
}
