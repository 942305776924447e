package version

// Version はアプリケーションのバージョン
const Version = "0.1.0"
